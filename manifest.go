package venvboot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// DefaultManifest is the manifest both setup scripts installed from.
const DefaultManifest = "requirements.txt"

// Requirement is one requirement line of a manifest.
type Requirement struct {
	// Raw is the line with comments and per-requirement options removed.
	Raw string

	// Name is the distribution name as written. Empty for URL or path
	// requirements that do not name their project.
	Name string

	// Marker is the PEP 508 environment marker after ";", if any. pip
	// skips the requirement when it does not match the interpreter.
	Marker string

	// File and Line locate the requirement for error messages.
	File string
	Line int

	Editable bool
}

// Key returns the normalized name used to compare against installed
// packages.
func (r Requirement) Key() string {
	return NormalizeName(r.Name)
}

// Manifest is a parsed requirements file including everything it pulls in
// with -r.
type Manifest struct {
	Path         string
	Requirements []Requirement

	// Files lists every file read, root first, in read order. Constraint
	// files are included.
	Files []string

	// Options holds global pip options such as --index-url, verbatim.
	Options []string

	// RemoteIncludes lists -r and -c targets given as URLs. pip fetches
	// them; they are neither read nor verified here.
	RemoteIncludes []string

	digest hash.Hash
}

var (
	nameRe      = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)
	normalizeRe = regexp.MustCompile(`[-_.]+`)
	eggRe       = regexp.MustCompile(`#egg=([A-Za-z0-9][A-Za-z0-9._-]*)`)
)

// NormalizeName returns the canonical form of a distribution name: lower
// case with runs of "-", "_" and "." collapsed into "-".
func NormalizeName(name string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(name), "-")
}

// pip options that take a value.
var valueOptions = map[string]bool{
	"-i":                true,
	"--index-url":       true,
	"--extra-index-url": true,
	"-f":                true,
	"--find-links":      true,
	"--trusted-host":    true,
	"--no-binary":       true,
	"--only-binary":     true,
	"--use-feature":     true,
	"--config-settings": true,
}

// pip options without a value.
var flagOptions = map[string]bool{
	"--no-index":       true,
	"--pre":            true,
	"--prefer-binary":  true,
	"--require-hashes": true,
}

// ParseManifest reads and validates the manifest at path. A missing file
// yields an error wrapping ErrManifestNotFound; a malformed line yields a
// *ManifestError.
func ParseManifest(path string) (*Manifest, error) {
	m := &Manifest{Path: path, digest: sha256.New()}
	if err := m.read(path, nil, false); err != nil {
		return nil, err
	}
	return m, nil
}

// Names returns the normalized names of all named requirements, without
// duplicates, in manifest order.
func (m *Manifest) Names() []string {
	seen := make(map[string]bool, len(m.Requirements))
	var names []string
	for _, r := range m.Requirements {
		if r.Name == "" {
			continue
		}
		k := r.Key()
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	return names
}

// Markers returns the distinct environment markers of named
// requirements, in manifest order.
func (m *Manifest) Markers() []string {
	seen := make(map[string]bool)
	var markers []string
	for _, r := range m.Requirements {
		if r.Name == "" || r.Marker == "" || seen[r.Marker] {
			continue
		}
		seen[r.Marker] = true
		markers = append(markers, r.Marker)
	}
	return markers
}

// Hash is the hex SHA-256 of the bytes of every file read, in read order.
// It changes whenever any included file changes.
func (m *Manifest) Hash() string {
	return hex.EncodeToString(m.digest.Sum(nil))
}

func (m *Manifest) read(path string, stack []string, constraint bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	for _, p := range stack {
		if p == abs {
			return &ManifestError{Path: path, Msg: "include cycle: " + strings.Join(append(stack, abs), " -> ")}
		}
	}
	stack = append(stack, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return fmt.Errorf("error reading manifest: %w", err)
	}
	m.Files = append(m.Files, path)
	m.digest.Write(data)

	text, err := decodeManifest(data)
	if err != nil {
		return &ManifestError{Path: path, Msg: "cannot decode: " + err.Error()}
	}
	for _, ln := range logicalLines(text) {
		if err := m.parseLine(path, ln.num, ln.text, stack, constraint); err != nil {
			return err
		}
	}
	return nil
}

// decodeManifest converts data to UTF-8 the way pip reads requirement
// files: a UTF-8 byte-order mark is dropped and UTF-16 or UTF-32 text is
// recognized by its mark.
func decodeManifest(data []byte) ([]byte, error) {
	var t transform.Transformer
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xfe, 0x00, 0x00}), bytes.HasPrefix(data, []byte{0x00, 0x00, 0xfe, 0xff}):
		t = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder()
	default:
		t = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	}
	out, _, err := transform.Bytes(t, data)
	return out, err
}

type logicalLine struct {
	num  int
	text string
}

// logicalLines joins backslash continuations and strips comments. A "#"
// starts a comment at the beginning of a line or after whitespace.
func logicalLines(data []byte) []logicalLine {
	var lines []logicalLine
	var cur strings.Builder
	start := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimRight(scanner.Text(), "\r")
		if cur.Len() == 0 {
			start = n
		}
		if strings.HasSuffix(text, `\`) {
			cur.WriteString(strings.TrimSuffix(text, `\`))
			continue
		}
		cur.WriteString(text)
		lines = append(lines, logicalLine{num: start, text: stripComment(cur.String())})
		cur.Reset()
	}
	if cur.Len() > 0 {
		lines = append(lines, logicalLine{num: start, text: stripComment(cur.String())})
	}
	return lines
}

func stripComment(s string) string {
	if strings.HasPrefix(s, "#") {
		return ""
	}
	for i := 1; i < len(s); i++ {
		if s[i] == '#' && (s[i-1] == ' ' || s[i-1] == '\t') {
			s = s[:i]
			break
		}
	}
	return strings.TrimSpace(s)
}

func (m *Manifest) parseLine(file string, num int, line string, stack []string, constraint bool) error {
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "-") {
		return m.parseOption(file, num, line, stack)
	}
	if constraint {
		// constraint files restrict versions but install nothing
		return nil
	}

	req, err := parseRequirement(line)
	if err != nil {
		return &ManifestError{Path: file, Line: num, Msg: err.Error()}
	}
	req.File, req.Line = file, num
	m.Requirements = append(m.Requirements, req)
	return nil
}

func (m *Manifest) parseOption(file string, num int, line string, stack []string) error {
	opt, value := splitOption(line)
	switch opt {
	case "-r", "--requirement", "-c", "--constraint":
		if value == "" {
			return &ManifestError{Path: file, Line: num, Msg: opt + " requires a file"}
		}
		if strings.Contains(value, "://") {
			m.RemoteIncludes = append(m.RemoteIncludes, value)
			m.digest.Write([]byte(value))
			return nil
		}
		include := value
		if !filepath.IsAbs(include) {
			include = filepath.Join(filepath.Dir(file), include)
		}
		return m.read(include, stack, opt == "-c" || opt == "--constraint")
	case "-e", "--editable":
		if value == "" {
			return &ManifestError{Path: file, Line: num, Msg: opt + " requires a path or URL"}
		}
		req := Requirement{Raw: line, File: file, Line: num, Editable: true}
		if match := eggRe.FindStringSubmatch(value); match != nil {
			req.Name = match[1]
		}
		m.Requirements = append(m.Requirements, req)
		return nil
	}
	if valueOptions[opt] {
		if value == "" {
			return &ManifestError{Path: file, Line: num, Msg: opt + " requires a value"}
		}
		m.Options = append(m.Options, opt, value)
		return nil
	}
	if flagOptions[opt] {
		m.Options = append(m.Options, opt)
		return nil
	}
	return &ManifestError{Path: file, Line: num, Msg: fmt.Sprintf("unsupported option %q", opt)}
}

// splitOption splits "-r file", "-rfile", "--requirement=file" and
// "--requirement file" into option and value.
func splitOption(line string) (string, string) {
	if strings.HasPrefix(line, "--") {
		if opt, value, ok := strings.Cut(line, "="); ok && !strings.ContainsAny(opt, " \t") {
			return opt, strings.TrimSpace(value)
		}
		fields := strings.Fields(line)
		return fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	}
	if len(line) < 2 {
		return line, ""
	}
	return line[:2], strings.TrimSpace(line[2:])
}

func parseRequirement(line string) (Requirement, error) {
	// per-requirement options such as --hash follow the specifier
	if i := strings.Index(line, " --"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	req := Requirement{Raw: line}

	if isURLOrPath(line) {
		// a marker after a URL or path needs whitespace before ";"
		if i := strings.Index(line, " ;"); i >= 0 {
			req.Marker = strings.TrimSpace(line[i+2:])
		} else if i := strings.Index(line, "; "); i >= 0 {
			req.Marker = strings.TrimSpace(line[i+1:])
		}
		if match := eggRe.FindStringSubmatch(line); match != nil {
			req.Name = match[1]
		}
		return req, nil
	}

	name := nameRe.FindString(line)
	if name == "" {
		return req, fmt.Errorf("invalid requirement %q", line)
	}
	rest := line[len(name):]
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return req, fmt.Errorf("invalid requirement %q: unterminated extras", line)
		}
		rest = rest[end+1:]
	}
	rest = strings.TrimLeft(rest, " \t")
	if rest != "" && !strings.ContainsRune("<>=!~;@(", rune(rest[0])) {
		return req, fmt.Errorf("invalid requirement %q", line)
	}
	sep := ";"
	if strings.HasPrefix(rest, "@") {
		sep = " ;"
	}
	if i := strings.Index(rest, sep); i >= 0 {
		req.Marker = strings.TrimSpace(rest[i+len(sep):])
		if req.Marker == "" {
			return req, fmt.Errorf("invalid requirement %q: empty environment marker", line)
		}
	}
	req.Name = name
	return req, nil
}

// isURLOrPath reports whether s is a URL, archive or local path rather
// than a named requirement. Like pip, anything with a path separator
// before the marker counts as a path.
func isURLOrPath(s string) bool {
	head, _, _ := strings.Cut(s, ";")
	head = strings.TrimSpace(head)
	// "name @ url" names its project
	if at := strings.IndexByte(head, '@'); at >= 0 && !strings.ContainsAny(head[:at], `/\:`) {
		return false
	}
	if strings.Contains(head, "://") || strings.ContainsAny(head, `/\`) || strings.HasPrefix(head, ".") {
		return true
	}
	if len(head) >= 2 && head[1] == ':' {
		return true
	}
	for _, ext := range []string{".whl", ".tar.gz", ".zip"} {
		if strings.HasSuffix(head, ext) {
			return true
		}
	}
	return false
}
