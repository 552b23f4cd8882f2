// ABOUTME: Course catalog over a directory of YAML and GPX course files
// ABOUTME: Lists, looks up, and imports courses; imported GPX is simplified and saved as YAML

package course

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/harper/courserun/internal/fileutil"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultMaxPoints bounds the polyline size of imported courses.
const DefaultMaxPoints = 100

var (
	// ErrNotFound is returned when no course has the requested id.
	ErrNotFound = errors.New("course not found")

	// ErrExists is returned when an import would overwrite a course.
	ErrExists = errors.New("course already exists")
)

var idPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Catalog reads courses from a directory. Each .yaml/.yml file holds one
// course; each .gpx file is a course whose id is the file name stem.
type Catalog struct {
	dir    string
	logger *zap.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger used to report unreadable course files.
func WithLogger(l *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCatalog creates a catalog over dir. The directory need not exist yet.
func NewCatalog(dir string, opts ...CatalogOption) *Catalog {
	c := &Catalog{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string { return c.dir }

// List returns every readable course sorted by id. Files that fail to parse
// are logged and skipped.
func (c *Catalog) List() ([]*models.Course, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read course dir: %w", err)
	}

	seen := make(map[string]bool)
	var courses []*models.Course
	for _, e := range entries {
		if e.IsDir() || !isCourseFile(e.Name()) {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		course, err := LoadFile(path)
		if err != nil {
			c.logger.Warn("Skipping course file", zap.String("path", path), zap.Error(err))
			continue
		}
		if seen[course.ID] {
			c.logger.Warn("Duplicate course id", zap.String("id", course.ID), zap.String("path", path))
			continue
		}
		seen[course.ID] = true
		courses = append(courses, course)
	}

	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

// Get returns the course with id.
func (c *Catalog) Get(id string) (*models.Course, error) {
	courses, err := c.List()
	if err != nil {
		return nil, err
	}
	for _, course := range courses {
		if course.ID == id {
			return course, nil
		}
	}
	return nil, fmt.Errorf("course %q: %w", id, ErrNotFound)
}

// ImportOptions control how a GPX file becomes a catalog course.
type ImportOptions struct {
	// ID defaults to a slug of the track name or file name.
	ID string
	// Name defaults to the GPX track name, then the id.
	Name string
	// MaxPoints bounds the polyline size; zero uses DefaultMaxPoints.
	MaxPoints int
	// Checkpoints designates vertex indices of the simplified polyline.
	Checkpoints []int
}

// Import parses a GPX file, simplifies it, and saves it as a YAML course.
func (c *Catalog) Import(gpxPath string, opts ImportOptions) (*models.Course, error) {
	f, err := os.Open(gpxPath)
	if err != nil {
		return nil, fmt.Errorf("open gpx: %w", err)
	}
	defer func() { _ = f.Close() }()

	track, err := ParseGPX(f)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = Slug(track.Name)
	}
	if id == "" {
		id = Slug(strings.TrimSuffix(filepath.Base(gpxPath), filepath.Ext(gpxPath)))
	}
	name := opts.Name
	if name == "" {
		name = track.Name
	}
	if name == "" {
		name = id
	}
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	maxPoints := opts.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	polyline := route.Simplify(track.Polyline(), maxPoints)

	course, err := models.NewCourse(id, name, polyline)
	if err != nil {
		return nil, err
	}
	course.Checkpoints = opts.Checkpoints
	if err := course.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.Get(id); err == nil {
		return nil, fmt.Errorf("course %q: %w", id, ErrExists)
	}

	if err := c.Save(course); err != nil {
		return nil, err
	}
	c.logger.Info("Imported course",
		zap.String("id", id),
		zap.Int("source_points", len(track.Points)),
		zap.Int("points", len(polyline)),
		zap.Float64("distance", course.TotalDistance))
	return course, nil
}

// Save writes course to <dir>/<id>.yaml.
func (c *Catalog) Save(course *models.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(course)
	if err != nil {
		return fmt.Errorf("encode course: %w", err)
	}
	return fileutil.AtomicWrite(filepath.Join(c.dir, course.ID+".yaml"), data)
}

// LoadFile reads a single YAML or GPX course file.
func LoadFile(path string) (*models.Course, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read course: %w", err)
		}
		var course models.Course
		if err := yaml.Unmarshal(data, &course); err != nil {
			return nil, fmt.Errorf("parse course %s: %w", filepath.Base(path), err)
		}
		if course.ID == "" {
			course.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		built, err := models.NewCourse(course.ID, course.Name, course.Polyline)
		if err != nil {
			return nil, err
		}
		built.Checkpoints = course.Checkpoints
		return built, built.Validate()
	case ".gpx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open course: %w", err)
		}
		defer func() { _ = f.Close() }()
		track, err := ParseGPX(f)
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		name := track.Name
		if name == "" {
			name = id
		}
		return models.NewCourse(id, name, track.Polyline())
	default:
		return nil, fmt.Errorf("unsupported course file %q", filepath.Base(path))
	}
}

// Slug lowercases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	return strings.Trim(idPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func isCourseFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".gpx":
		return !strings.HasPrefix(name, ".")
	}
	return false
}
