package graphics

// Context is the shared command context the host mutates elsewhere in the
// same frame. A compute pass binds its resources, dispatches, and must leave
// every bind point clear before returning control; a stale binding corrupts
// whatever unrelated pass the host runs next.
type Context struct {
	kernel    any
	resource  *Texture
	constants any
	unordered *Image
}

func NewContext() *Context { return &Context{} }

func (c *Context) BindKernel(k any) { c.kernel = k }

func (c *Context) BindResource(t *Texture) { c.resource = t }

func (c *Context) BindConstants(b any) { c.constants = b }

func (c *Context) BindUnordered(img *Image) { c.unordered = img }

// ClearBindings resets all four bind points.
func (c *Context) ClearBindings() {
	c.kernel = nil
	c.resource = nil
	c.constants = nil
	c.unordered = nil
}

// Clean reports whether every bind point is unbound.
func (c *Context) Clean() bool {
	return c.kernel == nil && c.resource == nil && c.constants == nil && c.unordered == nil
}
