package nodeid

// Well-known artifact kinds used as the first segment of an address.
const (
	KindObject  = "object"
	KindLibrary = "library"
	KindBinary  = "binary"
	KindImage   = "image"
)

// Address is the structured representation of a unique artifact identifier.
type Address struct {
	Kind string
	Name string
}

// New builds an address from its parts. It does not validate them; use Parse
// for untrusted input.
func New(kind, name string) Address {
	return Address{Kind: kind, Name: name}
}
