package util

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// WriteElements writes the fixed-width little-endian wire form of each element.
func WriteElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := writeElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(w io.Writer, element interface{}) error {
	var buf [8]byte
	switch e := element.(type) {
	case int32:
		binary.LittleEndian.PutUint32(buf[:4], uint32(e))
		_, err := w.Write(buf[:4])
		return err
	case uint32:
		binary.LittleEndian.PutUint32(buf[:4], e)
		_, err := w.Write(buf[:4])
		return err
	case int64:
		binary.LittleEndian.PutUint64(buf[:8], uint64(e))
		_, err := w.Write(buf[:8])
		return err
	case uint64:
		binary.LittleEndian.PutUint64(buf[:8], e)
		_, err := w.Write(buf[:8])
		return err
	case *Hash:
		return e.Serialize(w)
	}
	return errors.Errorf("unhandled element type %T", element)
}

// ReadElements reads the little-endian wire form into each pointer element.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := readElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

func readElement(r io.Reader, element interface{}) error {
	var buf [8]byte
	switch e := element.(type) {
	case *int32:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return err
		}
		*e = int32(binary.LittleEndian.Uint32(buf[:4]))
		return nil
	case *uint32:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint32(buf[:4])
		return nil
	case *int64:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return err
		}
		*e = int64(binary.LittleEndian.Uint64(buf[:8]))
		return nil
	case *uint64:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint64(buf[:8])
		return nil
	case *Hash:
		return e.Unserialize(r)
	}
	return errors.Errorf("unhandled element type %T", element)
}

func WriteVarInt(w io.Writer, val uint64) error {
	var buf [9]byte
	switch {
	case val < 0xfd:
		buf[0] = byte(val)
		_, err := w.Write(buf[:1])
		return err
	case val <= 0xffff:
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:3], uint16(val))
		_, err := w.Write(buf[:3])
		return err
	case val <= 0xffffffff:
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:5], uint32(val))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:9], val)
		_, err := w.Write(buf[:9])
		return err
	}
}

func ReadVarInt(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}
	discriminant := buf[0]
	switch discriminant {
	case 0xfd:
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return 0, err
		}
		val := uint64(binary.LittleEndian.Uint16(buf[:2]))
		if val < 0xfd {
			return 0, errors.New("non-canonical varint")
		}
		return val, nil
	case 0xfe:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return 0, err
		}
		val := uint64(binary.LittleEndian.Uint32(buf[:4]))
		if val <= 0xffff {
			return 0, errors.New("non-canonical varint")
		}
		return val, nil
	case 0xff:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return 0, err
		}
		val := binary.LittleEndian.Uint64(buf[:8])
		if val <= 0xffffffff {
			return 0, errors.New("non-canonical varint")
		}
		return val, nil
	default:
		return uint64(discriminant), nil
	}
}

func VarIntSerializeSize(val uint64) uint32 {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		return nil, errors.Errorf("%s is larger than the max allowed size count %d, max %d",
			fieldName, count, maxAllowed)
	}
	b := make([]byte, count)
	_, err = io.ReadFull(r, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func WriteVarBytes(w io.Writer, bytes []byte) error {
	if err := WriteVarInt(w, uint64(len(bytes))); err != nil {
		return err
	}
	_, err := w.Write(bytes)
	return err
}
