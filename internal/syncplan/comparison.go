package syncplan

import (
	"errors"
	"fmt"
	"strings"
)

// Change classifies what happened to one side relative to the baseline.
type Change uint8

const (
	ChangeNone Change = iota
	ChangeNew
	ChangeModified
	ChangeDeleted
)

func (c Change) String() string {
	switch c {
	case ChangeNone:
		return "NONE"
	case ChangeNew:
		return "NEW"
	case ChangeModified:
		return "MODIFIED"
	case ChangeDeleted:
		return "DELETED"
	default:
		return fmt.Sprintf("Change(%d)", uint8(c))
	}
}

// IsWrite is true for NEW and MODIFIED.
func (c Change) IsWrite() bool {
	return c == ChangeNew || c == ChangeModified
}

var (
	ErrInvalidComparison = errors.New("invalid comparison")
)

// ThreeWayComparison is the classification of client and server changes of one
// item relative to the last acknowledged baseline. It is built once per item and
// pass and never modified afterwards.
type ThreeWayComparison struct {
	OriginalVersion Version
	ClientVersion   Version
	ServerVersion   Version
	ClientChange    Change
	ServerChange    Change

	// set by the comparer for input it could not classify, e.g. duplicates
	rejected error
}

// NewComparison classifies both sides against the baseline.
func NewComparison(original, client, server Version) *ThreeWayComparison {
	return &ThreeWayComparison{
		OriginalVersion: original,
		ClientVersion:   client,
		ServerVersion:   server,
		ClientChange:    classify(original, client),
		ServerChange:    classify(original, server),
	}
}

func classify(original, current Version) Change {
	switch {
	case original == nil && current == nil:
		return ChangeNone
	case original == nil:
		return ChangeNew
	case current == nil:
		return ChangeDeleted
	case original.Fingerprint() != current.Fingerprint():
		return ChangeModified
	default:
		return ChangeNone
	}
}

// Identity returns the identity of whichever version is present, preferring the
// server side, then the client side, then the baseline.
func (c *ThreeWayComparison) Identity() string {
	for _, v := range []Version{c.ServerVersion, c.ClientVersion, c.OriginalVersion} {
		if v != nil {
			return v.Identity()
		}
	}
	return ""
}

// Family returns the family of the versions held by the comparison, or 0 when
// none is present.
func (c *ThreeWayComparison) Family() Family {
	for _, v := range []Version{c.ServerVersion, c.ClientVersion, c.OriginalVersion} {
		if v != nil {
			return v.Family()
		}
	}
	return 0
}

// Matches reports whether the comparison was classified as the given pair.
func (c *ThreeWayComparison) Matches(client, server Change) bool {
	return c != nil && c.ClientChange == client && c.ServerChange == server
}

// Validate checks that the changes agree with the presence of the versions and
// that all versions belong to one family and identity.
func (c *ThreeWayComparison) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil comparison", ErrInvalidComparison)
	}
	if c.rejected != nil {
		return fmt.Errorf("%w: %w", ErrInvalidComparison, c.rejected)
	}
	if err := checkSide("client", c.ClientChange, c.ClientVersion); err != nil {
		return err
	}
	if err := checkSide("server", c.ServerChange, c.ServerVersion); err != nil {
		return err
	}

	family := c.Family()
	if family == 0 {
		return fmt.Errorf("%w: no version present", ErrInvalidComparison)
	}
	identity := c.Identity()
	for _, v := range []Version{c.OriginalVersion, c.ClientVersion, c.ServerVersion} {
		if v == nil {
			continue
		}
		if v.Family() != family {
			return fmt.Errorf("%w: mixed %s and %s versions", ErrInvalidComparison, family, v.Family())
		}
		if v.Identity() != identity {
			return fmt.Errorf("%w: mismatched identities %q and %q", ErrInvalidComparison, identity, v.Identity())
		}
		if v.Fingerprint() == "" {
			return fmt.Errorf("%w: missing checksum for %q", ErrInvalidComparison, identity)
		}
	}
	if family == FamilyFile {
		if identity == "" {
			return fmt.Errorf("%w: empty file name", ErrInvalidComparison)
		}
		if strings.ContainsAny(identity, `/\`) {
			return fmt.Errorf("%w: file name %q contains a path separator", ErrInvalidComparison, identity)
		}
	}
	return nil
}

func checkSide(side string, change Change, v Version) error {
	switch change {
	case ChangeDeleted:
		if v != nil {
			return fmt.Errorf("%w: %s change DELETED with %s version present", ErrInvalidComparison, side, side)
		}
	case ChangeNew, ChangeModified:
		if v == nil {
			return fmt.Errorf("%w: %s change %s without %s version", ErrInvalidComparison, side, change, side)
		}
	case ChangeNone:
	default:
		return fmt.Errorf("%w: unknown %s change %s", ErrInvalidComparison, side, change)
	}
	return nil
}

func (c *ThreeWayComparison) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (client=%s, server=%s)", c.Identity(), c.ClientChange, c.ServerChange)
}
