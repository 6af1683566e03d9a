// Package machine implements the runtime: the tagged Value/Obj model, the
// string interner, the open-addressed hash table, the mark-sweep GC, and
// the stack-based virtual machine that executes compiled Chunks.
package machine

import (
	"fmt"
	"io"
	"time"
	"unsafe"
)

// FramesMax is the maximum call-frame depth (spec.md §3 invariant 3).
const FramesMax = 64

// StackMax is the maximum value-stack depth (spec.md §3 invariant 3).
const StackMax = FramesMax * 256

// CallFrame is a single activation record (spec.md §3 "Call frame").
type CallFrame struct {
	Closure *ObjClosure
	IP      int // index into Closure.Function.Chunk.Code
	Slots   int // base index into the VM's value stack
}

// Stdio is the pair of streams a program writes to. internal/maincmd builds
// one from the Stdout and Stderr of its mainer.Stdio (spec.md §6 "Top-level
// API", ambient CLI wiring).
type Stdio struct {
	Out io.Writer
	Err io.Writer
}

// InterpretResult classifies the outcome of running a program to
// completion (spec.md §6 "Top-level API").
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "OK"
	case InterpretCompileError:
		return "CompileError"
	case InterpretRuntimeError:
		return "RuntimeError"
	default:
		return "Unknown"
	}
}

// VM is the stack-based virtual machine (spec.md §4.4). Its lifecycle is
// NewVM -> Run (once per compiled script; the REPL calls it once per line,
// with globals persisting between calls) -> Close.
type VM struct {
	GC      *GC
	Globals *Globals
	Stdio   Stdio

	initString *ObjString // cached "init", used to resolve initializers and as a GC root

	stack      [StackMax]Value
	stackTop   int
	frames     [FramesMax]CallFrame
	frameCount int

	openUpvalues *ObjUpvalue

	removeRoot func()
}

// NewVM returns a VM sharing gc (the same GC the compiler allocated
// constants and function objects through) and writing program output
// through stdio.
func NewVM(gc *GC, stdio Stdio) *VM {
	vm := &VM{GC: gc, Globals: NewGlobals(), Stdio: stdio}
	vm.initString = gc.NewString("init")
	vm.defineNative("clock", nativeClock)
	vm.removeRoot = gc.AddRoot(vm.walkRoots)
	return vm
}

// Close unregisters the VM's GC root walker. Call it once the VM is done
// executing so a subsequent compile (e.g. in a REPL) doesn't keep scanning
// a dead VM's stack.
func (vm *VM) Close() {
	if vm.removeRoot != nil {
		vm.removeRoot()
		vm.removeRoot = nil
	}
}

func (vm *VM) walkRoots(mark func(Value)) {
	for i := 0; i < vm.stackTop; i++ {
		mark(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.frames[i].Closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		mark(uv)
	}
	vm.Globals.Each(func(k *ObjString, v Value) {
		mark(k)
		mark(v)
	})
	mark(vm.initString)
}

func (vm *VM) defineNative(name string, fn NativeFn) {
	n := vm.GC.NewNative(name, fn)
	vm.Globals.Define(vm.GC.NewString(name), n)
}

var processStart = time.Now()

func nativeClock(argc int, args []Value) Value {
	return Number(time.Since(processStart).Seconds())
}

func (vm *VM) push(v Value) { vm.stack[vm.stackTop] = v; vm.stackTop++ }
func (vm *VM) pop() Value   { vm.stackTop--; return vm.stack[vm.stackTop] }
func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Run executes fn as the top-level script (spec.md §6 interpret entry
// point wires Compile then Run).
func (vm *VM) Run(fn *ObjFunction) InterpretResult {
	vm.push(fn) // keep fn and its constants rooted while the closure is allocated
	closure := vm.GC.NewClosure(fn)
	vm.pop()
	vm.push(closure)
	vm.call(closure, 0)
	return vm.run()
}

func (vm *VM) runtimeError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.Stdio.Err, msg)

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.Closure.Function
		line := 0
		if frame.IP-1 >= 0 && frame.IP-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[frame.IP-1]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		fmt.Fprintf(vm.Stdio.Err, "[line %d] in %s\n", line, name)
	}
	vm.resetStack()
}

//nolint:gocyclo
func (vm *VM) run() InterpretResult {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.Closure.Function.Chunk.Code[frame.IP]
		frame.IP++
		return b
	}
	readShort := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() Value {
		return frame.Closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *ObjString {
		return readConstant().(*ObjString)
	}

	for {
		op := OpCode(readByte())
		switch op {
		case OpConstant:
			vm.push(readConstant())

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(Bool(true))
		case OpFalse:
			vm.push(Bool(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.Slots+int(slot)])
		case OpSetLocal:
			slot := readByte()
			vm.stack[frame.Slots+int(slot)] = vm.peek(0)

		case OpGetGlobal:
			name := readString()
			v, ok := vm.Globals.Get(name)
			if !ok {
				vm.runtimeError("Undefined variable '%s'.", name.Chars)
				return InterpretRuntimeError
			}
			vm.push(v)
		case OpDefineGlobal:
			name := readString()
			vm.Globals.Define(name, vm.peek(0))
			vm.pop()
		case OpSetGlobal:
			name := readString()
			if err := vm.Globals.Set(name, vm.peek(0)); err != nil {
				vm.runtimeError("%s", err.Error())
				return InterpretRuntimeError
			}

		case OpGetUpvalue:
			slot := readByte()
			vm.push(frame.Closure.Upvalues[slot].Get())
		case OpSetUpvalue:
			slot := readByte()
			frame.Closure.Upvalues[slot].Set(vm.peek(0))

		case OpGetProperty:
			inst, ok := vm.peek(0).(*ObjInstance)
			if !ok {
				vm.runtimeError("Only instances have properties.")
				return InterpretRuntimeError
			}
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return InterpretRuntimeError
			}
		case OpSetProperty:
			inst, ok := vm.peek(1).(*ObjInstance)
			if !ok {
				vm.runtimeError("Only instances have fields.")
				return InterpretRuntimeError
			}
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)
		case OpGetSuper:
			name := readString()
			super := vm.pop().(*ObjClass)
			if !vm.bindMethod(super, name) {
				return InterpretRuntimeError
			}

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))
		case OpGreater, OpLess:
			if !vm.numericBinary(op) {
				return InterpretRuntimeError
			}
		case OpAdd:
			if !vm.add() {
				return InterpretRuntimeError
			}
		case OpSubtract, OpMultiply, OpDivide:
			if !vm.numericBinary(op) {
				return InterpretRuntimeError
			}

		case OpNot:
			vm.push(Bool(!Truth(vm.pop())))
		case OpNegate:
			n, ok := vm.peek(0).(Number)
			if !ok {
				vm.runtimeError("Operand must be a number.")
				return InterpretRuntimeError
			}
			vm.pop()
			vm.push(-n)

		case OpPrint:
			fmt.Fprintln(vm.Stdio.Out, vm.pop().String())

		case OpJump:
			off := readShort()
			frame.IP += int(off)
		case OpJumpIfFalse:
			off := readShort()
			if !Truth(vm.peek(0)) {
				frame.IP += int(off)
			}
		case OpLoop:
			off := readShort()
			frame.IP -= int(off)

		case OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpInvoke:
			name := readString()
			argCount := int(readByte())
			if !vm.invoke(name, argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpSuperInvoke:
			name := readString()
			argCount := int(readByte())
			super := vm.pop().(*ObjClass)
			if !vm.invokeFromClass(super, name, argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpClosure:
			fn := readConstant().(*ObjFunction)
			closure := vm.GC.NewClosure(fn)
			vm.push(closure)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.Slots+int(index)])
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOK
			}
			vm.stackTop = frame.Slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case OpClass:
			vm.push(vm.GC.NewClass(readString()))
		case OpInherit:
			super, ok := vm.peek(1).(*ObjClass)
			if !ok {
				vm.runtimeError("Superclass must be a class.")
				return InterpretRuntimeError
			}
			sub := vm.peek(0).(*ObjClass)
			super.Methods.AddAll(sub.Methods)
			vm.pop() // subclass
		case OpMethod:
			vm.defineMethod(readString())

		default:
			vm.runtimeError("internal error: unimplemented opcode %s", op)
			return InterpretRuntimeError
		}
	}
}


func (vm *VM) numericBinary(op OpCode) bool {
	b, bok := vm.peek(0).(Number)
	a, aok := vm.peek(1).(Number)
	if !aok || !bok {
		vm.runtimeError("Operands must be numbers.")
		return false
	}
	vm.pop()
	vm.pop()
	switch op {
	case OpGreater:
		vm.push(Bool(a > b))
	case OpLess:
		vm.push(Bool(a < b))
	case OpSubtract:
		vm.push(a - b)
	case OpMultiply:
		vm.push(a * b)
	case OpDivide:
		vm.push(a / b)
	}
	return true
}

func (vm *VM) add() bool {
	bStr, bIsStr := vm.peek(0).(*ObjString)
	aStr, aIsStr := vm.peek(1).(*ObjString)
	if aIsStr && bIsStr {
		vm.pop()
		vm.pop()
		vm.push(vm.GC.NewString(aStr.Chars + bStr.Chars))
		return true
	}

	bNum, bIsNum := vm.peek(0).(Number)
	aNum, aIsNum := vm.peek(1).(Number)
	if aIsNum && bIsNum {
		vm.pop()
		vm.pop()
		vm.push(aNum + bNum)
		return true
	}

	vm.runtimeError("Operands must be two numbers or two strings.")
	return false
}

func pointerGT(a, b *Value) bool {
	return uintptr(unsafe.Pointer(a)) > uintptr(unsafe.Pointer(b))
}

func pointerGE(a, b *Value) bool {
	return uintptr(unsafe.Pointer(a)) >= uintptr(unsafe.Pointer(b))
}

// captureUpvalue returns the Open upvalue for the given stack slot,
// creating and inserting one in the (descending-slot-address-sorted) open
// list if none exists yet (spec.md §4.4, Invariant 3).
func (vm *VM) captureUpvalue(local *Value) *ObjUpvalue {
	var prev *ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && pointerGT(cur.Location, local) {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == local {
		return cur
	}

	created := vm.GC.NewUpvalue(local)
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above fromSlot (spec.md
// §4.4, Invariant 4).
func (vm *VM) closeUpvalues(fromSlot int) {
	from := &vm.stack[fromSlot]
	for vm.openUpvalues != nil && pointerGE(vm.openUpvalues.Location, from) {
		uv := vm.openUpvalues
		vm.openUpvalues = uv.Next
		uv.close()
	}
}

func (vm *VM) defineMethod(name *ObjString) {
	method := vm.peek(0).(*ObjClosure)
	class := vm.peek(1).(*ObjClass)
	class.Methods.Set(name, method)
	vm.pop()
}
