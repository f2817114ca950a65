// Package prometheus renders a metric.Registry in the Prometheus text
// exposition format.
package prometheus

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kzs0/callspan/attr"
	"github.com/kzs0/callspan/internal"
	"github.com/kzs0/callspan/metric"
)

// ContentType is the media type written by Handler.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Encode writes families in text exposition format. Families without
// series are skipped.
func Encode(w io.Writer, families []metric.MetricFamily) error {
	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)

	for _, fam := range families {
		if len(fam.Metrics) == 0 {
			continue
		}
		if fam.Help != "" {
			buf.WriteString("# HELP " + fam.Name + " " + helpReplacer.Replace(fam.Help) + "\n")
		}
		buf.WriteString("# TYPE " + fam.Name + " " + string(fam.Type) + "\n")

		for _, m := range fam.Metrics {
			switch fam.Type {
			case metric.TypeCounter:
				writeSample(buf, fam.Name, m.Labels, "", m.Value)
			case metric.TypeHistogram:
				for _, b := range m.Buckets {
					writeSample(buf, fam.Name+"_bucket", m.Labels, formatFloat(b.UpperBound), float64(b.Count))
				}
				writeSample(buf, fam.Name+"_bucket", m.Labels, "+Inf", float64(m.Count))
				writeSample(buf, fam.Name+"_sum", m.Labels, "", m.Sum)
				writeSample(buf, fam.Name+"_count", m.Labels, "", float64(m.Count))
			}
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// writeSample writes one line; a non-empty le is appended as the last label.
func writeSample(buf *bytes.Buffer, name string, labels attr.Set, le string, value float64) {
	buf.WriteString(name)
	if labels.Len() > 0 || le != "" {
		buf.WriteByte('{')
		first := true
		labels.Range(func(a attr.Attr) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeLabel(buf, a.Key, a.Value.String())
			return true
		})
		if le != "" {
			if !first {
				buf.WriteByte(',')
			}
			writeLabel(buf, "le", le)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(' ')
	buf.WriteString(formatFloat(value))
	buf.WriteByte('\n')
}

func writeLabel(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(`="`)
	buf.WriteString(labelReplacer.Replace(value))
	buf.WriteByte('"')
}

var (
	helpReplacer  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelReplacer = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
)

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
