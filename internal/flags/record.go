package flags

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Flag files are flat key=value documents, one recognized field per line.
// Values are escaped so that multi-line messages survive the line-oriented
// format: backslash, newline, and carriage return become \\, \n, and \r.

func escapeValue(v string) string {
	r := strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r")
	return r.Replace(v)
}

func unescapeValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\\' && i+1 < len(v) {
			i++
			switch v[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(v[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// parseRecord reads a flag file into a key/value map. Blank lines and
// #-comments are skipped; a line without '=' is ignored; a repeated key
// keeps the last value.
func parseRecord(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rec := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		rec[strings.TrimSpace(key)] = unescapeValue(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// recordField keeps the on-disk field order stable across saves.
type recordField struct {
	key   string
	value string
}

func formatRecord(fields []recordField) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s=%s\n", f.key, escapeValue(f.value))
	}
	return b.String()
}

// replaceRecord persists content at path with a backup-then-replace write
// discipline: the previous content, if any, is preserved at path+".bak"
// before the new content is written to a temporary file and renamed into
// place. A partial write can therefore never corrupt the only copy.
func replaceRecord(path, content string) error {
	prev, err := os.ReadFile(path)
	if err == nil {
		if err := os.WriteFile(path+".bak", prev, 0o644); err != nil {
			return fmt.Errorf("writing backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading previous record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}
