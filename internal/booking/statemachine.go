package booking

// transitions lists, per state, the states it may move to.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns a *TransitionError when the
// move is not allowed.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

func (b *Booking) Start() error    { return b.moveTo(StatusInProgress) }
func (b *Booking) Complete() error { return b.moveTo(StatusCompleted) }
func (b *Booking) Cancel() error   { return b.moveTo(StatusCancelled) }

func (b *Booking) moveTo(to Status) error {
	if err := Transition(b.Status, to); err != nil {
		return err
	}
	b.Status = to
	return nil
}
