package session

// Document is the document engine the controller drives.
// document.Store implements it.
type Document interface {
	Load(serialized string)
	Serialize() string
	OnChange(fn func(serialized string)) (unsubscribe func())
}

// LoadAcknowledger is implemented by documents that can tell when the
// notifications caused by a programmatic load have all been delivered.
// The controller then clears its loading guard on the acknowledgement instead
// of waiting for the guard delay.
type LoadAcknowledger interface {
	LoadAck(serialized string) <-chan struct{}
}
