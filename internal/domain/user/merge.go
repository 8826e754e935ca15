package user

import (
	"context"
	"errors"

	"github.com/c2s/ums/internal/domain/identifier"
)

// Merger reconciles an existing demographics aggregate with an
// incoming representation. Two deliberately different strategies are
// in play: identifiers (and the SSN) follow replace-set semantics,
// while telecoms and addresses are upserted by natural key and never
// deleted.
type Merger struct {
	store         IdentifierStore
	ssnSystemCode string
}

func NewMerger(store IdentifierStore, ssnSystemCode string) *Merger {
	return &Merger{store: store, ssnSystemCode: ssnSystemCode}
}

func identKey(value, systemCode string) string {
	return value + "|" + systemCode
}

// ReconcileIdentifiers diffs the user-supplied identifiers against the
// incoming list. System-generated identifiers and the SSN (which has
// its own scalar rule) are never touched here. The detached rows are
// returned so the caller can release them from the store after the
// links are gone.
func (m *Merger) ReconcileIdentifiers(ctx context.Context, d *Demographics, incoming []IdentifierInput) ([]*identifier.Identifier, error) {
	incomingKeys := make(map[string]bool, len(incoming))
	for _, in := range incoming {
		if in.SystemCode == m.ssnSystemCode {
			continue
		}
		incomingKeys[identKey(in.Value, in.SystemCode)] = true
	}

	var kept []*identifier.Identifier
	var detached []*identifier.Identifier
	existingKeys := make(map[string]bool, len(d.Identifiers))
	for _, id := range d.Identifiers {
		existingKeys[identKey(id.Value, id.SystemCode)] = true
		if id.SystemGenerated || id.SystemCode == m.ssnSystemCode {
			kept = append(kept, id)
			continue
		}
		if incomingKeys[identKey(id.Value, id.SystemCode)] {
			kept = append(kept, id)
		} else {
			detached = append(detached, id)
		}
	}

	for _, in := range incoming {
		if in.SystemCode == m.ssnSystemCode {
			continue
		}
		key := identKey(in.Value, in.SystemCode)
		if existingKeys[key] {
			continue
		}
		existingKeys[key] = true
		resolved, err := m.store.ResolveOrCreate(ctx, in.Value, in.SystemCode)
		if err != nil {
			return nil, err
		}
		kept = append(kept, resolved)
	}

	d.Identifiers = kept
	return detached, nil
}

// ReconcileSSN applies the scalar replace rule for the configured SSN
// system: absent incoming removes an existing SSN, a differing value
// replaces it, an equal value is a no-op.
func (m *Merger) ReconcileSSN(ctx context.Context, d *Demographics, ssn *string) ([]*identifier.Identifier, error) {
	existing := d.IdentifierBySystem(m.ssnSystemCode)

	if ssn == nil {
		if existing == nil {
			return nil, nil
		}
		d.Identifiers = withoutIdentifier(d.Identifiers, existing)
		return []*identifier.Identifier{existing}, nil
	}

	if existing != nil && existing.Value == *ssn {
		return nil, nil
	}

	resolved, err := m.store.ResolveOrCreate(ctx, *ssn, m.ssnSystemCode)
	if err != nil {
		if errors.Is(err, identifier.ErrSystemNotFound) {
			return nil, ErrSSNSystemNotFound
		}
		return nil, err
	}

	var detached []*identifier.Identifier
	if existing != nil {
		d.Identifiers = withoutIdentifier(d.Identifiers, existing)
		detached = append(detached, existing)
	}
	d.Identifiers = append(d.Identifiers, resolved)
	return detached, nil
}

// ReconcileTelecoms upserts each incoming telecom by (system, use).
// Existing telecoms absent from the incoming list are preserved.
func (m *Merger) ReconcileTelecoms(d *Demographics, incoming []TelecomInput) error {
	for _, in := range incoming {
		system, err := ParseTelecomSystem(in.System)
		if err != nil {
			return err
		}
		use, err := ParseTelecomUse(in.Use)
		if err != nil {
			return err
		}
		if existing := d.FindTelecom(system, use); existing != nil {
			existing.Value = in.Value
			continue
		}
		d.Telecoms = append(d.Telecoms, &Telecom{
			DemographicsID: d.ID,
			System:         system,
			Use:            use,
			Value:          in.Value,
		})
	}
	return nil
}

// ReconcileAddresses upserts each incoming address by use. Existing
// addresses absent from the incoming list are preserved.
func (m *Merger) ReconcileAddresses(d *Demographics, incoming []AddressInput) error {
	for _, in := range incoming {
		use, err := ParseAddressUse(in.Use)
		if err != nil {
			return err
		}
		if existing := d.FindAddress(use); existing != nil {
			existing.Line1 = in.Line1
			existing.Line2 = in.Line2
			existing.City = in.City
			existing.StateCode = in.StateCode
			existing.CountryCode = in.CountryCode
			existing.PostalCode = in.PostalCode
			continue
		}
		d.Addresses = append(d.Addresses, &Address{
			DemographicsID: d.ID,
			Use:            use,
			Line1:          in.Line1,
			Line2:          in.Line2,
			City:           in.City,
			StateCode:      in.StateCode,
			CountryCode:    in.CountryCode,
			PostalCode:     in.PostalCode,
		})
	}
	return nil
}

func withoutIdentifier(ids []*identifier.Identifier, target *identifier.Identifier) []*identifier.Identifier {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
