package script

// Commands buffers lifecycle operations requested while a callback or
// coroutine is running. They are applied in request order once the
// dispatch that queued them has returned, so no instance changes state
// underneath the code currently executing on its behalf.
type Commands struct {
	queue []command
	head  int
}

type commandOp uint8

const (
	opAttach commandOp = iota
	opEnable
	opDisable
	opToggle
	opDestroy
	opDefer
)

func (op commandOp) String() string {
	switch op {
	case opAttach:
		return "attach"
	case opEnable:
		return "enable"
	case opDisable:
		return "disable"
	case opToggle:
		return "toggle"
	case opDestroy:
		return "destroy"
	case opDefer:
		return "defer"
	default:
		return "unknown"
	}
}

type command struct {
	op   commandOp
	inst *Instance
	fn   func()
}

func newCommands() *Commands {
	return &Commands{}
}

// Defer queues fn to run after the current dispatch returns.
func (c *Commands) Defer(fn func()) {
	c.queue = append(c.queue, command{op: opDefer, fn: fn})
}

// Enable queues an enable of inst.
func (c *Commands) Enable(inst *Instance) { c.push(opEnable, inst) }

// Disable queues a disable of inst.
func (c *Commands) Disable(inst *Instance) { c.push(opDisable, inst) }

// Toggle queues a toggle of inst.
func (c *Commands) Toggle(inst *Instance) { c.push(opToggle, inst) }

// Destroy queues the destruction of inst.
func (c *Commands) Destroy(inst *Instance) { c.push(opDestroy, inst) }

func (c *Commands) attach(inst *Instance) { c.push(opAttach, inst) }

func (c *Commands) push(op commandOp, inst *Instance) {
	c.queue = append(c.queue, command{op: op, inst: inst})
}

// Len returns the number of pending commands.
func (c *Commands) Len() int {
	return len(c.queue) - c.head
}

// pop removes the oldest pending command. Commands queued while earlier ones
// are being applied are picked up by the same drain loop.
func (c *Commands) pop() (command, bool) {
	if c.head >= len(c.queue) {
		c.queue = c.queue[:0]
		c.head = 0
		return command{}, false
	}
	cmd := c.queue[c.head]
	c.queue[c.head] = command{}
	c.head++
	return cmd, true
}
