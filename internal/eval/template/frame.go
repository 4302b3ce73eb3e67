package template

// Frame is one scope of the context chain. A frame only ever points to a
// frame created before it, so the chain cannot cycle.
type Frame struct {
	value  interface{}
	parent *Frame

	// data holds @variables introduced at this level (@index, @key, @root...)
	data map[string]interface{}
	// locals are the named parameters of a partial call
	locals map[string]interface{}
	// params are block params bound by "as |a b|"
	params map[string]interface{}
	// block is the body of an enclosing partial block, for @partial-block
	block *partialBlock
}

type partialBlock struct {
	body *ListNode
	// outer is the partial block visible where body was written
	outer *partialBlock
}

func newRootFrame(v interface{}) *Frame {
	return &Frame{
		value: v,
		data:  map[string]interface{}{"root": v},
	}
}

// Value is the context value of the frame
func (f *Frame) Value() interface{} { return f.value }

// Parent is the enclosing frame, nil for the root
func (f *Frame) Parent() *Frame { return f.parent }

// Data looks up an @variable from this frame outwards
func (f *Frame) Data(key string) (interface{}, bool) {
	return f.lookupData(key, 0)
}

func (f *Frame) push(v interface{}) *Frame {
	return &Frame{value: v, parent: f, block: f.block}
}

func (f *Frame) withData(data map[string]interface{}) *Frame {
	f.data = data
	return f
}

// bind records block params on a freshly pushed frame
func (f *Frame) bind(names []string, values ...interface{}) *Frame {
	if len(names) == 0 {
		return f
	}
	f.params = make(map[string]interface{}, len(names))
	for i, name := range names {
		if i < len(values) {
			f.params[name] = values[i]
		} else {
			f.params[name] = Undefined
		}
	}
	return f
}

func (f *Frame) lookupData(key string, depth int) (interface{}, bool) {
	fr := f
	for ; depth > 0 && fr != nil; depth-- {
		for fr != nil && fr.data == nil {
			fr = fr.parent
		}
		if fr != nil {
			fr = fr.parent
		}
	}
	for ; fr != nil; fr = fr.parent {
		if v, ok := fr.data[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (f *Frame) lookupParam(name string) (interface{}, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.params[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// resolve evaluates a path against the frame chain: walk up for "../", pick
// the first segment from locals, block params or the frame value, then walk
// the remaining segments through the value.
func (f *Frame) resolve(p *PathExpr) (interface{}, error) {
	if p.Data {
		v, ok := f.lookupData(p.Parts[0], p.Depth)
		if !ok {
			return Undefined, nil
		}
		return walk(v, p.Parts[1:]), nil
	}

	target := f
	for i := 0; i < p.Depth; i++ {
		if target.parent == nil {
			return nil, &ContextDepthError{Path: p.Original, Depth: p.Depth}
		}
		target = target.parent
	}
	if len(p.Parts) == 0 {
		return target.value, nil
	}

	head := p.Parts[0]
	if !p.This {
		if v, ok := target.locals[head]; ok {
			return walk(v, p.Parts[1:]), nil
		}
		if p.Depth == 0 {
			if v, ok := target.lookupParam(head); ok {
				return walk(v, p.Parts[1:]), nil
			}
		}
	}
	return walk(target.value, p.Parts), nil
}

// walk follows segments through v; a missing segment yields Undefined
func walk(v interface{}, parts []string) interface{} {
	for _, part := range parts {
		next, ok := field(v, part)
		if !ok {
			return Undefined
		}
		v = next
	}
	return v
}
