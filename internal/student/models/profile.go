package models

import (
	"time"

	"rollcall/internal/student/identity"
)

// Residence and gender values accepted by profile updates.
const (
	ResidentYes = "Yes"
	ResidentNo  = "No"

	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Profile is the persisted per-student document.
//
// Invariants:
//   - UID, Email, Name, Department and Year are set once, from the verified
//     identity, and never change afterwards
//   - IsResident "No" implies Block and RoomNumber are nil
//   - IsResident "Yes" implies Block and RoomNumber are non-empty
type Profile struct {
	UID        string  `json:"uid" bson:"_id"`
	Name       string  `json:"name" bson:"name"`
	Email      string  `json:"email" bson:"email"`
	Department string  `json:"department" bson:"department"`
	Year       string  `json:"year" bson:"year"`
	RollNumber *string `json:"rollNumber" bson:"rollNumber"`
	IsResident *string `json:"isResident" bson:"isResident"`
	Block      *string `json:"block" bson:"block"`
	RoomNumber *string `json:"roomNumber" bson:"roomNumber"`
	Gender     *string `json:"gender" bson:"gender"`

	LastLoginTime time.Time  `json:"lastLoginTime" bson:"lastLoginTime"`
	CreatedAt     *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty" bson:"lastUpdated,omitempty"`
}

// NewProfile builds the first-login document for a verified identity.
func NewProfile(uid string, id identity.Identity, now time.Time) *Profile {
	created := now
	return &Profile{
		UID:           uid,
		Name:          id.Name,
		Email:         id.Email,
		Department:    id.Department,
		Year:          id.Year,
		LastLoginTime: now,
		CreatedAt:     &created,
	}
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.RollNumber = cloneString(p.RollNumber)
	c.IsResident = cloneString(p.IsResident)
	c.Block = cloneString(p.Block)
	c.RoomNumber = cloneString(p.RoomNumber)
	c.Gender = cloneString(p.Gender)
	c.CreatedAt = cloneTime(p.CreatedAt)
	c.LastUpdated = cloneTime(p.LastUpdated)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StringPtr is a convenience for building nullable fields.
func StringPtr(s string) *string {
	return &s
}
