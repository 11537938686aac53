package event

// HandlerFuncs adapts optional functions to a Handler. Nil fields ignore
// their variant.
type HandlerFuncs struct {
	PartialText    func(PartialText)
	FullText       func(FullText)
	ToolCall       func(ToolCall)
	ToolCallOutput func(ToolCallOutput)
	Error          func(Error)
	Done           func(Done)
}

func (f HandlerFuncs) OnPartialText(e PartialText) {
	if f.PartialText != nil {
		f.PartialText(e)
	}
}

func (f HandlerFuncs) OnFullText(e FullText) {
	if f.FullText != nil {
		f.FullText(e)
	}
}

func (f HandlerFuncs) OnToolCall(e ToolCall) {
	if f.ToolCall != nil {
		f.ToolCall(e)
	}
}

func (f HandlerFuncs) OnToolCallOutput(e ToolCallOutput) {
	if f.ToolCallOutput != nil {
		f.ToolCallOutput(e)
	}
}

func (f HandlerFuncs) OnError(e Error) {
	if f.Error != nil {
		f.Error(e)
	}
}

func (f HandlerFuncs) OnDone(e Done) {
	if f.Done != nil {
		f.Done(e)
	}
}

// Drain applies h to every event from ch until ch is closed.
func Drain(ch <-chan Event, h Handler) {
	for e := range ch {
		e.Accept(h)
	}
}
