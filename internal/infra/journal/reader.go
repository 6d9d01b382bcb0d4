package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"

	"github.com/MRamiBalles/agentia/internal/events"
)

// ErrStop can be returned by a visit function to end a read early without error.
var ErrStop = errors.New("journal: stop")

// Segments lists the journal segments in dir, oldest first. When run is
// non-empty only that run's segments are returned.
func Segments(dir, run string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.Wrapf(err, "read journal dir %s", dir)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if run != "" && !strings.Contains(name, "-"+run+"-") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile decodes one segment, calling visit for every tick in order.
func ReadFile(path string, visit func(events.TickRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return oops.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return oops.Wrapf(err, "zstd reader %s", path)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var rec events.TickRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return oops.Wrapf(err, "%s:%d: decode", filepath.Base(path), line)
		}
		if err := visit(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return oops.Wrapf(err, "%s: scan", filepath.Base(path))
	}
	return nil
}

// ReadDir decodes every segment of dir (optionally one run) in order.
func ReadDir(dir, run string, visit func(events.TickRecord) error) error {
	paths, err := Segments(dir, run)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := ReadFile(p, visit); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}
