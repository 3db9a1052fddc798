// Package nexus decodes Nexus binary plot files and flattens their data
// items into one row per (timestep, instance, variable).
package nexus

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

var (
	// ErrBadHeader is returned when the file is not a Nexus plot file or its tables are corrupt
	ErrBadHeader = errors.New("nexus: bad header")
	// ErrUnexpectedEOF is returned when the file ends inside a header or data block
	ErrUnexpectedEOF = errors.New("nexus: unexpected end of file")
)

const (
	magic      = "PLOT  BIN   "
	stopMarker = "STOP    "

	// chunk bounds how much is allocated ahead of the bytes actually read,
	// so corrupt counts fail at EOF instead of exhausting memory
	chunk = 1024
)

// UnitSystem is the unit convention recorded in the plot header
type UnitSystem int

const (
	UnitsEnglish UnitSystem = iota
	UnitsMetricBar
	UnitsMetricKgCm2
	UnitsMetric
	UnitsLab
)

var unitSystems = map[string]UnitSystem{
	"ENGLIS": UnitsEnglish,
	"METBAR": UnitsMetricBar,
	"METKG/": UnitsMetricKgCm2,
	"METRIC": UnitsMetric,
	"LAB   ": UnitsLab,
}

func (u UnitSystem) String() string {
	switch u {
	case UnitsEnglish:
		return "english"
	case UnitsMetricBar:
		return "metric-bar"
	case UnitsMetricKgCm2:
		return "metric-kg/cm2"
	case UnitsMetric:
		return "metric"
	case UnitsLab:
		return "lab"
	default:
		return "unknown"
	}
}

// Header is the fixed part of a plot file
type Header struct {
	UnitSystem UnitSystem
	NumClasses int32
	Day        int32
	Month      int32
	Year       int32
	NX         int32
	NY         int32
	NZ         int32
	NComp      int32
}

// Datum is one variable value of one instance at one timestep
type Datum struct {
	Timestep     int32
	Time         float32
	MaxPerfs     int32
	ClassName    string
	InstanceName string
	VarName      string
	Value        float32
}

// Plot is a decoded plot file
type Plot struct {
	Header   Header
	VarNames map[string][]string // class name -> variable names
	Data     []Datum
}

// Load opens and decodes the plot file at filename
func Load(filename string) (*Plot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", filename, err)
	}
	defer file.Close()

	plot, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return plot, nil
}

// Decode reads a plot file from r
func Decode(r io.Reader) (*Plot, error) {
	d := &decoder{r: bufio.NewReader(r)}

	header, err := d.header()
	if err != nil {
		return nil, err
	}

	varnames, err := d.varnames(header.NumClasses)
	if err != nil {
		return nil, err
	}

	plot := &Plot{Header: header, VarNames: varnames}
	for {
		classname, err := d.str(8)
		if err != nil {
			return nil, err
		}
		if classname == stopMarker {
			return plot, nil
		}
		if err := d.block(plot, classname); err != nil {
			return nil, err
		}
	}
}

type decoder struct {
	r *bufio.Reader
}

func (d *decoder) skip(n int64) error {
	if _, err := io.CopyN(io.Discard, d.r, n); err != nil {
		return eof(err)
	}
	return nil
}

func (d *decoder) str(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", eof(err)
	}
	return string(buf), nil
}

func (d *decoder) int32s(n int) ([]int32, error) {
	out := make([]int32, 0, capHint(n))
	buf := make([]int32, capHint(n))
	for len(out) < n {
		part := buf[:min(n-len(out), len(buf))]
		if err := binary.Read(d.r, binary.BigEndian, part); err != nil {
			return nil, eof(err)
		}
		out = append(out, part...)
	}
	return out, nil
}

func capHint(n int) int {
	return max(0, min(n, chunk))
}

func (d *decoder) header() (Header, error) {
	if err := d.skip(4); err != nil {
		return Header{}, err
	}
	tag, err := d.str(len(magic))
	if err != nil {
		return Header{}, fmt.Errorf("%w: could not verify file type", ErrBadHeader)
	}
	if tag != magic {
		return Header{}, fmt.Errorf("%w: could not verify file type", ErrBadHeader)
	}

	// plot file version, simulator, two simulator version fields
	if err := d.skip(4 * 6); err != nil {
		return Header{}, err
	}

	us, err := d.str(6)
	if err != nil {
		return Header{}, fmt.Errorf("%w: file has no content", err)
	}
	units, ok := unitSystems[us]
	if !ok {
		return Header{}, fmt.Errorf("%w: unknown unit system %q", ErrBadHeader, us)
	}

	if err := d.skip(530 + 264); err != nil {
		return Header{}, err
	}

	buf, err := d.int32s(8)
	if err != nil {
		return Header{}, err
	}
	for _, v := range buf {
		if v < 0 {
			return Header{}, fmt.Errorf("%w: negative value, corrupted file", ErrBadHeader)
		}
	}

	return Header{
		UnitSystem: units,
		NumClasses: buf[0],
		Day:        buf[1],
		Month:      buf[2],
		Year:       buf[3],
		NX:         buf[4],
		NY:         buf[5],
		NZ:         buf[6],
		NComp:      buf[7],
	}, nil
}

func (d *decoder) varnames(numClasses int32) (map[string][]string, error) {
	if err := d.skip(8); err != nil {
		return nil, err
	}

	classnames := make([]string, 0, capHint(int(numClasses)))
	for i := int32(0); i < numClasses; i++ {
		name, err := d.str(8)
		if err != nil {
			return nil, err
		}
		classnames = append(classnames, name)
	}

	if err := d.skip(8); err != nil {
		return nil, err
	}
	varsInClass, err := d.int32s(int(numClasses))
	if err != nil {
		return nil, err
	}
	for _, v := range varsInClass {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative value, corrupted file", ErrBadHeader)
		}
	}

	if err := d.skip(8); err != nil {
		return nil, err
	}

	varnames := make(map[string][]string, len(classnames))
	for i, classname := range classnames {
		// time variable name
		if err := d.skip(4); err != nil {
			return nil, err
		}
		names := make([]string, 0, capHint(int(varsInClass[i])))
		for k := int32(0); k < varsInClass[i]; k++ {
			name, err := d.str(4)
			if err != nil {
				return nil, err
			}
			names = append(names, trim(name))
		}
		varnames[trim(classname)] = names
		if err := d.skip(8); err != nil {
			return nil, err
		}
	}

	return varnames, nil
}

func (d *decoder) block(plot *Plot, classname string) error {
	if err := d.skip(8); err != nil {
		return err
	}

	buf, err := d.int32s(5)
	if err != nil {
		return err
	}
	timestep := int32(bitsToFloat(buf[0]))
	t := bitsToFloat(buf[1])
	numItems := int32(bitsToFloat(buf[2]))
	// buf[3] holds max_items, unused
	maxPerfs := int32(bitsToFloat(buf[4]))

	class := trim(classname)
	names := plot.VarNames[class]
	for i := int32(0); i < numItems; i++ {
		if err := d.skip(8); err != nil {
			return err
		}
		instancename, err := d.str(8)
		if err != nil {
			return err
		}
		if err := d.skip(64); err != nil {
			return err
		}

		values, err := d.int32s(len(names))
		if err != nil {
			return err
		}
		for k, v := range values {
			plot.Data = append(plot.Data, Datum{
				Timestep:     timestep,
				Time:         t,
				MaxPerfs:     maxPerfs,
				ClassName:    class,
				InstanceName: trim(instancename),
				VarName:      names[k],
				Value:        bitsToFloat(v),
			})
		}
	}

	return d.skip(8)
}

func bitsToFloat(v int32) float32 {
	return math.Float32frombits(uint32(v))
}

func trim(s string) string {
	return strings.TrimRight(s, " \x00")
}

func eof(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOF
	}
	return err
}
