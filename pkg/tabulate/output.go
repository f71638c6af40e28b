package tabulate

import (
	"bufio"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/json"
)

// cell is one evaluated column of an output record.
type cell struct {
	value    interface{}
	valid    bool
	isString bool
}

type sink interface {
	begin() error
	record(cells []cell) error
	end() error
}

func formatNumber(v interface{}) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return "NaN"
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return x
	}
	return "NaN"
}

type tsvSink struct {
	w      *bufio.Writer
	labels []string
}

func (s *tsvSink) begin() error {
	if len(s.labels) == 0 {
		return nil
	}
	_, err := s.w.WriteString("# " + strings.Join(s.labels, "\t") + "\n")
	return err
}

func (s *tsvSink) record(cells []cell) error {
	for i, c := range cells {
		if i > 0 {
			s.w.WriteByte('\t')
		}
		if !c.valid {
			s.w.WriteString("NaN")
			continue
		}
		s.w.WriteString(formatNumber(c.value))
	}
	return s.w.WriteByte('\n')
}

func (s *tsvSink) end() error { return nil }

type jsonSink struct {
	w       *bufio.Writer
	labels  []string
	ncols   int
	records int64
}

func (s *jsonSink) begin() error {
	_, err := s.w.WriteString("{\"rows\":[\n")
	return err
}

func (s *jsonSink) value(c cell) string {
	switch {
	case !c.valid && c.isString:
		return "null"
	case !c.valid:
		return "NaN"
	}
	switch x := c.value.(type) {
	case string:
		return string(json.AppendString(nil, x))
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "null"
		}
	}
	return formatNumber(c.value)
}

func (s *jsonSink) record(cells []cell) error {
	if s.records > 0 {
		s.w.WriteString(",\n")
	}
	s.records++
	switch {
	case len(s.labels) > 0:
		s.w.WriteByte('{')
		for i, c := range cells {
			if i > 0 {
				s.w.WriteByte(',')
			}
			s.w.Write(json.AppendString(nil, s.labels[i]))
			s.w.WriteByte(':')
			s.w.WriteString(s.value(c))
		}
		return s.w.WriteByte('}')
	case s.ncols > 1:
		s.w.WriteByte('[')
		for i, c := range cells {
			if i > 0 {
				s.w.WriteByte(',')
			}
			s.w.WriteString(s.value(c))
		}
		return s.w.WriteByte(']')
	default:
		_, err := s.w.WriteString(s.value(cells[0]))
		return err
	}
}

func (s *jsonSink) end() error {
	if s.records > 0 {
		s.w.WriteByte('\n')
	}
	_, err := s.w.WriteString("]}\n")
	return err
}

var avroNameInvalid = regexp.MustCompile(`[^A-Za-z0-9_]`)

// avroFieldNames turns labels into unique Avro field names.
func avroFieldNames(labels []string) []string {
	out := make([]string, len(labels))
	seen := make(map[string]bool)
	for i, l := range labels {
		name := avroNameInvalid.ReplaceAllString(l, "_")
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			name = "_" + name
		}
		base := name
		for n := 2; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

const avroBatchSize = 1000

type avroSink struct {
	w      *bufio.Writer
	fields []string
	ocf    *goavro.OCFWriter
	batch  []interface{}
}

func newAvroSink(w *bufio.Writer, labels []string, compression string) (*avroSink, error) {
	s := &avroSink{w: w, fields: avroFieldNames(labels)}
	type field struct {
		Name string   `json:"name"`
		Type []string `json:"type"`
	}
	schema := struct {
		Type   string  `json:"type"`
		Name   string  `json:"name"`
		Fields []field `json:"fields"`
	}{Type: "record", Name: "row"}
	for _, f := range s.fields {
		schema.Fields = append(schema.Fields, field{Name: f, Type: []string{"null", "long", "double", "boolean", "string"}})
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build Avro schema")
	}
	codec, err := goavro.NewCodec(string(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec")
	}
	s.ocf, err = goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "failed to create Avro writer with compression %q", compression)
	}
	return s, nil
}

func (s *avroSink) begin() error { return nil }

func (s *avroSink) record(cells []cell) error {
	rec := make(map[string]interface{}, len(cells))
	for i, c := range cells {
		if !c.valid {
			rec[s.fields[i]] = goavro.Union("null", nil)
			continue
		}
		switch x := c.value.(type) {
		case int64:
			rec[s.fields[i]] = goavro.Union("long", x)
		case float64:
			rec[s.fields[i]] = goavro.Union("double", x)
		case bool:
			rec[s.fields[i]] = goavro.Union("boolean", x)
		case string:
			rec[s.fields[i]] = goavro.Union("string", x)
		}
	}
	s.batch = append(s.batch, rec)
	if len(s.batch) >= avroBatchSize {
		return s.flush()
	}
	return nil
}

func (s *avroSink) flush() error {
	if len(s.batch) == 0 {
		return nil
	}
	if err := s.ocf.Append(s.batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write Avro records")
	}
	s.batch = s.batch[:0]
	return nil
}

func (s *avroSink) end() error { return s.flush() }
