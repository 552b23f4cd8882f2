// ABOUTME: OCR adapter that shells out to the tesseract command-line tool
// ABOUTME: Reads word-level TSV output to recover text and mean confidence

package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// TesseractOCR runs the tesseract binary with the image on stdin.
type TesseractOCR struct {
	Binary    string // defaults to "tesseract"
	Languages string // defaults to "kor+eng"
	// PageSegMode 6 treats the image as one uniform block of text.
	PageSegMode int
}

var _ OCR = (*TesseractOCR)(nil)

// NewTesseractOCR returns an adapter with the default binary and languages.
func NewTesseractOCR() *TesseractOCR {
	return &TesseractOCR{Binary: "tesseract", Languages: "kor+eng", PageSegMode: 6}
}

// ExtractText runs tesseract and parses its TSV output.
func (t *TesseractOCR) ExtractText(ctx context.Context, image []byte) (Text, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	langs := t.Languages
	if langs == "" {
		langs = "kor+eng"
	}
	psm := t.PageSegMode
	if psm == 0 {
		psm = 6
	}

	cmd := exec.CommandContext(ctx, bin, "stdin", "stdout", "-l", langs, "--psm", strconv.Itoa(psm), "tsv") //nolint:gosec // binary is operator-configured
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Text{}, fmt.Errorf("run tesseract: %w: %s", err, msg)
		}
		return Text{}, fmt.Errorf("run tesseract: %w", err)
	}

	return ParseTSV(stdout.String())
}

// ParseTSV reads tesseract TSV output. Words on the same line are joined with
// spaces and lines with newlines. Confidence is the mean word confidence
// scaled to 0..1.
func ParseTSV(tsv string) (Text, error) {
	lines := strings.Split(strings.TrimRight(tsv, "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "level") {
		return Text{}, fmt.Errorf("parse tsv: missing header")
	}

	var (
		out      strings.Builder
		lineKey  string
		confSum  float64
		words    int
		haveLine bool
	)

	for _, row := range lines[1:] {
		fields := strings.SplitN(row, "\t", 12)
		if len(fields) < 12 || fields[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		key := fields[2] + "/" + fields[3] + "/" + fields[4]
		switch {
		case !haveLine:
			haveLine = true
		case key != lineKey:
			out.WriteByte('\n')
		default:
			out.WriteByte(' ')
		}
		lineKey = key
		out.WriteString(word)

		confSum += conf
		words++
	}

	if words == 0 {
		return Text{}, nil
	}
	return Text{Text: out.String(), Confidence: confSum / float64(words) / 100}, nil
}
