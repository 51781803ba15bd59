package script

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/dario-ramos/bitprim-blockchain/model/opcodes"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const (
	MaxScriptSize = 10000

	// MaxPubKeysPerMultiSig is what an unparseable multisig counts as.
	MaxPubKeysPerMultiSig = 20

	MinCoinbaseScriptSize = 2
	MaxCoinbaseScriptSize = 100
)

// Script verification flags, derived from the soft-fork activation set and
// handed to the external verifier.
const (
	ScriptVerifyNone                = 0
	ScriptVerifyP2SH                = 1 << 0
	ScriptVerifyDersig              = 1 << 2
	ScriptVerifyCheckLockTimeVerify = 1 << 9
)

type Script struct {
	data          []byte
	ParsedOpCodes []opcodes.ParsedOpCode
	badOpCode     bool
}

func NewScriptRaw(bytes []byte) *Script {
	newBytes := make([]byte, len(bytes))
	copy(newBytes, bytes)
	s := Script{data: newBytes}
	s.convertOPS()
	return &s
}

func NewEmptyScript() *Script {
	s := Script{}
	s.data = make([]byte, 0)
	s.ParsedOpCodes = make([]opcodes.ParsedOpCode, 0)
	return &s
}

func (s *Script) GetData() []byte {
	return s.data
}

func (s *Script) Size() int {
	return len(s.data)
}

func (s *Script) IsBad() bool {
	return s.badOpCode
}

func (s *Script) EncodeSize() uint32 {
	return util.VarIntSerializeSize(uint64(len(s.data))) + uint32(len(s.data))
}

func (s *Script) Encode(writer io.Writer) error {
	return util.WriteVarBytes(writer, s.data)
}

func (s *Script) Decode(reader io.Reader) error {
	bytes, err := util.ReadVarBytes(reader, MaxScriptSize*100, "script")
	if err != nil {
		return err
	}
	s.data = bytes
	s.convertOPS()
	return nil
}

// convertOPS walks the raw bytes into ParsedOpCodes. A truncated push marks
// the script bad instead of failing; consensus treats such scripts as
// unparseable where it matters (sigop counting, p2sh redeem extraction).
func (s *Script) convertOPS() {
	s.ParsedOpCodes = make([]opcodes.ParsedOpCode, 0)
	scriptLen := len(s.data)
	s.badOpCode = false

	for i := 0; i < scriptLen; {
		opcode := s.data[i]
		i++

		if opcode > opcodes.OP_16 {
			s.ParsedOpCodes = append(s.ParsedOpCodes,
				opcodes.ParsedOpCode{OpValue: opcode})
			continue
		}

		var nSize int
		switch {
		case opcode < opcodes.OP_PUSHDATA1:
			nSize = int(opcode)
		case opcode == opcodes.OP_PUSHDATA1:
			if scriptLen-i < 1 {
				s.badOpCode = true
				return
			}
			nSize = int(s.data[i])
			i++
		case opcode == opcodes.OP_PUSHDATA2:
			if scriptLen-i < 2 {
				s.badOpCode = true
				return
			}
			nSize = int(binary.LittleEndian.Uint16(s.data[i : i+2]))
			i += 2
		case opcode == opcodes.OP_PUSHDATA4:
			if scriptLen-i < 4 {
				s.badOpCode = true
				return
			}
			nSize = int(binary.LittleEndian.Uint32(s.data[i : i+4]))
			i += 4
		default:
			// OP_1NEGATE and OP_1 .. OP_16 push implicit values.
			s.ParsedOpCodes = append(s.ParsedOpCodes,
				opcodes.ParsedOpCode{OpValue: opcode})
			continue
		}

		if scriptLen-i < nSize {
			s.badOpCode = true
			return
		}
		s.ParsedOpCodes = append(s.ParsedOpCodes, opcodes.ParsedOpCode{
			OpValue: opcode,
			Length:  nSize,
			Data:    s.data[i : i+nSize],
		})
		i += nSize
	}
}

func (s *Script) IsPayToScriptHash() bool {
	size := len(s.data)
	return size == 23 &&
		s.data[0] == opcodes.OP_HASH160 &&
		s.data[1] == 0x14 &&
		s.data[22] == opcodes.OP_EQUAL
}

func (s *Script) IsPushOnly() bool {
	if s.badOpCode {
		return false
	}
	for _, ops := range s.ParsedOpCodes {
		if ops.OpValue > opcodes.OP_16 {
			return false
		}
	}
	return true
}

// GetSigOpCount counts signature operations. In accurate mode a multisig
// preceded by OP_N counts as N, otherwise as MaxPubKeysPerMultiSig.
func (s *Script) GetSigOpCount(accurate bool) int {
	n := 0
	var lastOpcode byte = opcodes.OP_INVALIDOPCODE
	for _, e := range s.ParsedOpCodes {
		opcode := e.OpValue
		if opcode == opcodes.OP_CHECKSIG || opcode == opcodes.OP_CHECKSIGVERIFY {
			n++
		} else if opcode == opcodes.OP_CHECKMULTISIG || opcode == opcodes.OP_CHECKMULTISIGVERIFY {
			if accurate && lastOpcode >= opcodes.OP_1 && lastOpcode <= opcodes.OP_16 {
				n += DecodeOPN(lastOpcode)
			} else {
				n += MaxPubKeysPerMultiSig
			}
		}
		lastOpcode = opcode
	}
	return n
}

// GetP2SHSigOpCount counts the accurate sigops of the redeem script, which is
// the last item the scriptSig pushes onto the stack.
func (s *Script) GetP2SHSigOpCount() int {
	if s.badOpCode {
		return 0
	}
	for _, e := range s.ParsedOpCodes {
		if e.OpValue > opcodes.OP_16 {
			return 0
		}
	}
	if len(s.ParsedOpCodes) == 0 {
		return 0
	}
	lastOps := s.ParsedOpCodes[len(s.ParsedOpCodes)-1]
	tempScript := NewScriptRaw(lastOps.Data)
	return tempScript.GetSigOpCount(true)
}

func EncodeOPN(n int) (int, error) {
	if n < 0 || n > 16 {
		return 0, errors.New("EncodeOPN n is out of bounds")
	}
	if n == 0 {
		return opcodes.OP_0, nil
	}
	return opcodes.OP_1 + n - 1, nil
}

func DecodeOPN(opcode byte) int {
	if opcode == opcodes.OP_0 {
		return 0
	}
	if opcode < opcodes.OP_1 || opcode > opcodes.OP_16 {
		panic("Decode Opcode err")
	}
	return int(opcode) - int(opcodes.OP_1-1)
}
