package lua

import (
	"fmt"

	"github.com/Shopify/go-lua"
)

type VM struct {
	state *lua.State
}

func NewVM() *VM {
	state := lua.NewState()
	openSafeLibraries(state)
	vm := &VM{state: state}
	registerBuiltins(vm)
	return vm
}

func openSafeLibraries(state *lua.State) {
	lua.OpenLibraries(state)

	state.PushNil()
	state.SetGlobal("io")

	state.PushNil()
	state.SetGlobal("os")

	state.PushNil()
	state.SetGlobal("debug")

	state.PushNil()
	state.SetGlobal("dofile")

	state.PushNil()
	state.SetGlobal("loadfile")
}

func (vm *VM) LoadFile(path string) error {
	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load lua string: %w", err)
	}
	return nil
}

func (vm *VM) HasGlobal(name string) bool {
	vm.state.Global(name)
	defined := !vm.state.IsNil(-1)
	vm.state.Pop(1)
	return defined
}

// GetGlobalTable pushes the named table. Callers release it with PopTable.
func (vm *VM) GetGlobalTable(name string) error {
	vm.state.Global(name)
	if !vm.state.IsTable(-1) {
		vm.state.Pop(1)
		return fmt.Errorf("global %s is not a table", name)
	}
	return nil
}

// TableHas reports whether the table on top of the stack has a non-nil key.
func (vm *VM) TableHas(key string) bool {
	vm.state.Field(-1, key)
	present := !vm.state.IsNil(-1)
	vm.state.Pop(1)
	return present
}

func (vm *VM) GetTableString(key string) (string, error) {
	vm.state.Field(-1, key)
	if !vm.state.IsString(-1) {
		vm.state.Pop(1)
		return "", fmt.Errorf("field %s is not a string", key)
	}
	value, _ := vm.state.ToString(-1)
	vm.state.Pop(1)
	return value, nil
}

func (vm *VM) GetTableNumber(key string) (float64, error) {
	vm.state.Field(-1, key)
	if !vm.state.IsNumber(-1) {
		vm.state.Pop(1)
		return 0, fmt.Errorf("field %s is not a number", key)
	}
	value, _ := vm.state.ToNumber(-1)
	vm.state.Pop(1)
	return value, nil
}

func (vm *VM) GetTableBool(key string) (bool, error) {
	vm.state.Field(-1, key)
	if !vm.state.IsBoolean(-1) {
		vm.state.Pop(1)
		return false, fmt.Errorf("field %s is not a boolean", key)
	}
	value := vm.state.ToBoolean(-1)
	vm.state.Pop(1)
	return value, nil
}

func (vm *VM) GetTableIntArray(key string) ([]int, error) {
	vm.state.Field(-1, key)
	if !vm.state.IsTable(-1) {
		vm.state.Pop(1)
		return nil, fmt.Errorf("field %s is not a table", key)
	}

	var result []int
	length := vm.state.RawLength(-1)
	for i := 1; i <= length; i++ {
		vm.state.RawGetInt(-1, i)
		if !vm.state.IsNumber(-1) {
			vm.state.Pop(2)
			return nil, fmt.Errorf("field %s[%d] is not a number", key, i)
		}
		value, _ := vm.state.ToNumber(-1)
		result = append(result, int(value))
		vm.state.Pop(1)
	}
	vm.state.Pop(1)
	return result, nil
}

// EachTableEntry pushes every array entry of field key in turn and calls fn
// with the entry on top of the stack.
func (vm *VM) EachTableEntry(key string, fn func(i int) error) error {
	vm.state.Field(-1, key)
	if !vm.state.IsTable(-1) {
		vm.state.Pop(1)
		return fmt.Errorf("field %s is not a table", key)
	}

	length := vm.state.RawLength(-1)
	for i := 1; i <= length; i++ {
		vm.state.RawGetInt(-1, i)
		if !vm.state.IsTable(-1) {
			vm.state.Pop(2)
			return fmt.Errorf("field %s[%d] is not a table", key, i)
		}
		if err := fn(i); err != nil {
			vm.state.Pop(2)
			return err
		}
		vm.state.Pop(1)
	}
	vm.state.Pop(1)
	return nil
}

func (vm *VM) PopTable() {
	vm.state.Pop(1)
}

func (vm *VM) CallFunctionWithReturn(name string, numReturns int, args ...interface{}) ([]interface{}, error) {
	vm.state.Global(name)
	if !vm.state.IsFunction(-1) {
		vm.state.Pop(1)
		return nil, fmt.Errorf("global %s is not a function", name)
	}

	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			vm.state.PushString(v)
		case int:
			vm.state.PushInteger(v)
		case float64:
			vm.state.PushNumber(v)
		case bool:
			vm.state.PushBoolean(v)
		default:
			vm.state.Pop(1 + i)
			return nil, fmt.Errorf("unsupported argument type: %T", arg)
		}
	}

	if err := vm.state.ProtectedCall(len(args), numReturns, 0); err != nil {
		return nil, fmt.Errorf("[Lua Error] function %s: %w", name, err)
	}

	results := make([]interface{}, numReturns)
	for i := numReturns - 1; i >= 0; i-- {
		stackIndex := -1 - (numReturns - 1 - i)
		switch {
		case vm.state.IsNumber(stackIndex):
			value, _ := vm.state.ToNumber(stackIndex)
			results[i] = value
		case vm.state.IsString(stackIndex):
			value, _ := vm.state.ToString(stackIndex)
			results[i] = value
		case vm.state.IsBoolean(stackIndex):
			results[i] = vm.state.ToBoolean(stackIndex)
		default:
			results[i] = nil
		}
	}
	vm.state.Pop(numReturns)

	return results, nil
}

func (vm *VM) HasFunction(name string) bool {
	vm.state.Global(name)
	isFunc := vm.state.IsFunction(-1)
	vm.state.Pop(1)
	return isFunc
}

func (vm *VM) RegisterFunction(name string, fn lua.Function) {
	vm.state.Register(name, fn)
}
