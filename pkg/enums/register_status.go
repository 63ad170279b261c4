package enums

// RegisterStatus tracks a cash drawer session.
type RegisterStatus string

const (
	RegisterStatusOpen   RegisterStatus = "open"
	RegisterStatusClosed RegisterStatus = "closed"
)

var validRegisterStatuses = []RegisterStatus{RegisterStatusOpen, RegisterStatusClosed}

func (s RegisterStatus) IsValid() bool {
	return contains(validRegisterStatuses, s)
}
