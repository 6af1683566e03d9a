package machine

// call pushes a new CallFrame for closure, binding argCount stack values
// already sitting on top of the stack as its parameters (spec.md §4.4,
// Invariant 2: arity must match exactly).
func (vm *VM) call(closure *ObjClosure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == FramesMax {
		vm.runtimeError("Stack overflow.")
		return false
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Slots = vm.stackTop - argCount - 1
	return true
}

// callValue dispatches a call to whatever Callable sits at the bottom of
// the argument window: a closure, a native, a class (construction), or a
// bound method (spec.md §4.4 "Calling convention").
func (vm *VM) callValue(callee Value, argCount int) bool {
	switch c := callee.(type) {
	case *ObjClosure:
		return vm.call(c, argCount)

	case *ObjNative:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result := c.Fn(argCount, args)
		vm.stackTop -= argCount + 1
		vm.push(result)
		return true

	case *ObjClass:
		vm.stack[vm.stackTop-argCount-1] = vm.GC.NewInstance(c)
		if initializer, ok := c.Methods.Get(vm.initString); ok {
			return vm.call(initializer.(*ObjClosure), argCount)
		} else if argCount != 0 {
			vm.runtimeError("Expected 0 arguments but got %d.", argCount)
			return false
		}
		return true

	case *ObjBoundMethod:
		vm.stack[vm.stackTop-argCount-1] = c.Receiver
		return vm.call(c.Method, argCount)

	default:
		vm.runtimeError("Can only call functions and classes.")
		return false
	}
}

// invoke is the OpInvoke fast path: it resolves a method call without
// first materializing an ObjBoundMethod (spec.md §4.3 OpInvoke). A field
// holding a callable value shadows a same-named method, per Lox semantics.
func (vm *VM) invoke(name *ObjString, argCount int) bool {
	receiver := vm.peek(argCount)
	instance, ok := receiver.(*ObjInstance)
	if !ok {
		vm.runtimeError("Only instances have methods.")
		return false
	}

	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}

	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argCount int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	return vm.call(method.(*ObjClosure), argCount)
}

// bindMethod resolves name on class, replacing the receiver on top of the
// stack with a fresh ObjBoundMethod (spec.md §4.3 OpGetProperty/OpGetSuper
// fallback path).
func (vm *VM) bindMethod(class *ObjClass, name *ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}

	bound := vm.GC.NewBoundMethod(vm.peek(0), method.(*ObjClosure))
	vm.pop()
	vm.push(bound)
	return true
}
