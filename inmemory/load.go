package inmemory

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
)

// maxLineSize bounds a single JSON line accepted by LoadJSONLines.
const maxLineSize = 4 << 20

// LoadJSONLines adds one document per non-blank line of r. The document id is
// the string value of idField when present, otherwise the line number.
// It returns the number of documents added.
func (s *Searcher) LoadJSONLines(r io.Reader, idField string) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	n, line := 0, 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}

		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return n, errors.Wrapf(err, "line %d", line)
		}
		if fields == nil {
			return n, errors.Newf("line %d is not an object", line)
		}

		id, _ := fields[idField].(string)
		if id == "" {
			id = strconv.Itoa(line)
		}
		s.AddDocument(Document{ID: id, Fields: fields})
		n++
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "read line %d", line+1)
	}
	return n, nil
}
