package machine

import "fmt"

// OpCode is a single bytecode instruction. All opcodes are one byte; operand
// widths are noted next to each constant (spec.md §4.3).
type OpCode uint8

//nolint:revive
const (
	OpConstant     OpCode = iota // idx:u8
	OpNil                        // -
	OpTrue                       // -
	OpFalse                      // -
	OpPop                        // -
	OpGetLocal                   // slot:u8
	OpSetLocal                   // slot:u8
	OpGetGlobal                  // name-const:u8
	OpSetGlobal                  // name-const:u8
	OpDefineGlobal               // name-const:u8
	OpGetUpvalue                 // slot:u8
	OpSetUpvalue                 // slot:u8
	OpGetProperty                // name-const:u8
	OpSetProperty                // name-const:u8
	OpGetSuper                   // name-const:u8
	OpEqual                      // -
	OpGreater                    // -
	OpLess                       // -
	OpAdd                        // -
	OpSubtract                   // -
	OpMultiply                   // -
	OpDivide                     // -
	OpNot                        // -
	OpNegate                     // -
	OpPrint                      // -
	OpJump                       // off:u16
	OpJumpIfFalse                // off:u16
	OpLoop                       // off:u16
	OpCall                       // argc:u8
	OpInvoke                     // name-const:u8, argc:u8
	OpSuperInvoke                // name-const:u8, argc:u8
	OpClosure                    // fn-const:u8, then (is-local:u8, index:u8) x upvalueCount
	OpCloseUpvalue               // -
	OpReturn                     // -
	OpClass                      // name-const:u8
	OpInherit                    // -
	OpMethod                     // name-const:u8

	opCodeCount
)

var opCodeNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpGetSuper:     "OP_GET_SUPER",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpInvoke:       "OP_INVOKE",
	OpSuperInvoke:  "OP_SUPER_INVOKE",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpReturn:       "OP_RETURN",
	OpClass:        "OP_CLASS",
	OpInherit:      "OP_INHERIT",
	OpMethod:       "OP_METHOD",
}

func (op OpCode) String() string {
	if op < opCodeCount {
		return opCodeNames[op]
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", uint8(op))
}
