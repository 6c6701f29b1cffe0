package models

import "time"

// Optional is a nullable string that also remembers whether it was supplied
// at all: absent, explicit null, or a value.
type Optional struct {
	Set   bool
	Value *string
}

// Null is an explicitly supplied null.
func Null() Optional {
	return Optional{Set: true}
}

// Some is an explicitly supplied value.
func Some(v string) Optional {
	return Optional{Set: true, Value: &v}
}

// ProfileUpdate is the sanitized set of mutable-field changes produced by
// ValidateProfileUpdate.
type ProfileUpdate struct {
	RollNumber Optional
	IsResident Optional
	Block      Optional
	RoomNumber Optional
	Gender     Optional
}

// IsEmpty reports whether no field was supplied.
func (u ProfileUpdate) IsEmpty() bool {
	return !u.RollNumber.Set && !u.IsResident.Set && !u.Block.Set && !u.RoomNumber.Set && !u.Gender.Set
}

// Fields returns the supplied changes keyed by their document field name.
// Stores use it to build partial updates.
func (u ProfileUpdate) Fields() map[string]*string {
	out := make(map[string]*string, 5)
	add := func(name string, o Optional) {
		if o.Set {
			out[name] = cloneString(o.Value)
		}
	}
	add(FieldRollNumber, u.RollNumber)
	add(FieldIsResident, u.IsResident)
	add(FieldBlock, u.Block)
	add(FieldRoomNumber, u.RoomNumber)
	add(FieldGender, u.Gender)
	return out
}

// Apply writes the supplied changes onto p and stamps LastUpdated.
// Immutable identity fields are never touched.
func (u ProfileUpdate) Apply(p *Profile, now time.Time) {
	set := func(dst **string, o Optional) {
		if o.Set {
			*dst = cloneString(o.Value)
		}
	}
	set(&p.RollNumber, u.RollNumber)
	set(&p.IsResident, u.IsResident)
	set(&p.Block, u.Block)
	set(&p.RoomNumber, u.RoomNumber)
	set(&p.Gender, u.Gender)
	updated := now
	p.LastUpdated = &updated
}
