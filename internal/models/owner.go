package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OwnerKind tags the Owner union.
type OwnerKind int

const (
	// OwnerAddress: a single principal acts as owner.
	OwnerAddress OwnerKind = iota + 1
	// OwnerACL: owner decisions are delegated to an access-control service.
	OwnerACL
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerAddress:
		return "address"
	case OwnerACL:
		return "acl"
	default:
		return fmt.Sprintf("OwnerKind(%d)", int(k))
	}
}

// Owner is either {address: principal} or {acl: principal}.
type Owner struct {
	Kind      OwnerKind
	Principal string
}

func AddressOwner(addr string) Owner { return Owner{Kind: OwnerAddress, Principal: addr} }

func ACLOwner(acl string) Owner { return Owner{Kind: OwnerACL, Principal: acl} }

func (o Owner) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OwnerAddress:
		return json.Marshal(map[string]string{"address": o.Principal})
	case OwnerACL:
		return json.Marshal(map[string]string{"acl": o.Principal})
	default:
		return nil, fmt.Errorf("marshal owner: unknown kind %v", o.Kind)
	}
}

func (o *Owner) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return errors.New("owner: expected exactly one of address, acl")
	}
	if v, ok := raw["address"]; ok {
		*o = AddressOwner(v)
		return nil
	}
	if v, ok := raw["acl"]; ok {
		*o = ACLOwner(v)
		return nil
	}
	return errors.New("owner: expected exactly one of address, acl")
}
