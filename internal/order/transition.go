package order

// edges lists every legal move of the order graph. Nothing skips a state.
var edges = map[Status][]Status{
	StatusPendingPayment: {StatusPrinting, StatusCancelled},
	StatusPrinting:       {StatusCompleted, StatusCancelled},
	StatusCompleted:      {StatusDone},
}

func CanTransition(from, to Status) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// stampColumn is the timestamp column recorded when an order enters status.
func stampColumn(to Status) string {
	switch to {
	case StatusPrinting:
		return "paid_at"
	case StatusCompleted:
		return "completed_at"
	case StatusDone:
		return "collected_at"
	case StatusCancelled:
		return "cancelled_at"
	}
	return ""
}
