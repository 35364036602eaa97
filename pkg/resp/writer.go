package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Writer encodes commands and replies onto a buffered stream.
// Callers must call Flush after the last write of a batch.
type Writer struct {
	bw  *bufio.Writer
	num []byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	if bw, ok := w.(*bufio.Writer); ok {
		return &Writer{bw: bw}
	}
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteCommand writes name and args as an array of bulk strings, the only
// request form the backend is required to accept.
func (w *Writer) WriteCommand(name string, args [][]byte) error {
	w.writeHeader(ArrayPrefix, int64(1+len(args)))
	w.writeHeader(BulkPrefix, int64(len(name)))
	w.bw.WriteString(name)
	w.bw.Write(crlf)
	for _, arg := range args {
		w.writeHeader(BulkPrefix, int64(len(arg)))
		w.bw.Write(arg)
		w.bw.Write(crlf)
	}
	return nil
}

// WriteValue writes v in reply form. Used by test backends.
func (w *Writer) WriteValue(v Value) error {
	switch v.Kind {
	case KindStatus:
		w.bw.WriteByte(StatusPrefix)
		w.bw.Write(v.Str)
		w.bw.Write(crlf)
	case KindError:
		w.bw.WriteByte(ErrorPrefix)
		w.bw.Write(v.Str)
		w.bw.Write(crlf)
	case KindInteger:
		w.writeHeader(IntegerPrefix, v.Int)
	case KindBulk:
		w.writeHeader(BulkPrefix, int64(len(v.Str)))
		w.bw.Write(v.Str)
		w.bw.Write(crlf)
	case KindNil:
		w.bw.WriteString("$-1\r\n")
	case KindArray:
		w.writeHeader(ArrayPrefix, int64(len(v.Array)))
		for _, item := range v.Array {
			if err := w.WriteValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeHeader(prefix byte, n int64) {
	w.num = strconv.AppendInt(w.num[:0], n, 10)
	w.bw.WriteByte(prefix)
	w.bw.Write(w.num)
	w.bw.Write(crlf)
}
