package invocation

import "github.com/google/uuid"

// Member identifies a cluster member by address and instance UUID. The UUID
// distinguishes a restarted member that reuses an address.
type Member struct {
	Address string
	UUID    uuid.UUID
}

// NewMember creates a member with a fresh instance UUID.
func NewMember(address string) Member {
	return Member{
		Address: address,
		UUID:    uuid.New(),
	}
}

func (m Member) String() string {
	return m.Address
}
