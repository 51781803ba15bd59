package script

import "github.com/pkg/errors"

const (
	DefaultMaxNumSize = 4
)

type ScriptNum struct {
	Value int64
}

func NewScriptNum(v int64) *ScriptNum {
	return &ScriptNum{Value: v}
}

func GetScriptNum(vch []byte, requireMinimal bool, maxNumSize int) (scriptNum *ScriptNum, err error) {
	vchLen := len(vch)
	if vchLen > maxNumSize {
		return NewScriptNum(0), errors.New("script number overflow")
	}
	if requireMinimal && vchLen > 0 {
		// Check that the number is encoded with the minimum possible number
		// of bytes. The most significant byte must carry payload beyond the
		// sign bit, except when the sign bit would otherwise collide with
		// the preceding byte's high bit.
		if vch[vchLen-1]&0x7f == 0 {
			if vchLen == 1 || (vch[vchLen-2]&0x80) == 0 {
				return NewScriptNum(0), errors.New("non-minimally encoded script number")
			}
		}
	}

	if vchLen == 0 {
		return NewScriptNum(0), nil
	}

	var v int64
	for i := 0; i < vchLen; i++ {
		v |= int64(vch[i]) << uint8(8*i)
	}
	if vch[vchLen-1]&0x80 != 0 {
		v &= ^(int64(0x80) << uint8(8*(vchLen-1)))
		return NewScriptNum(-v), nil
	}
	return NewScriptNum(v), nil
}

func (scriptNum *ScriptNum) Serialize() (bytes []byte) {
	if scriptNum.Value == 0 {
		return nil
	}
	negative := scriptNum.Value < 0
	absoluteValue := scriptNum.Value
	if negative {
		absoluteValue = -scriptNum.Value
	}
	bytes = make([]byte, 0, 9)
	for absoluteValue > 0 {
		bytes = append(bytes, byte(absoluteValue&0xff))
		absoluteValue >>= 8
	}
	// The sign lives in the high bit of the last byte; add a padding byte
	// when that bit is already occupied by magnitude.
	if bytes[len(bytes)-1]&0x80 != 0 {
		extraByte := byte(0x00)
		if negative {
			extraByte = 0x80
		}
		bytes = append(bytes, extraByte)
	} else if negative {
		bytes[len(bytes)-1] |= 0x80
	}
	return bytes
}
