package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntityKind names a record type that carries its own sequence counter.
type EntityKind string

const (
	KindLead           EntityKind = "lead"
	KindChannelPartner EntityKind = "channelPartner"
	KindEmployee       EntityKind = "employee"
)

// Prefix returns the human-readable sequence prefix for the kind.
func (k EntityKind) Prefix() string {
	switch k {
	case KindLead:
		return "LD"
	case KindChannelPartner:
		return "CP"
	case KindEmployee:
		return "EMP"
	}
	return ""
}

// FormatSequenceNo renders n as <prefix><n zero-padded to 3 digits>, e.g. CP001.
// Values above 999 keep all their digits.
func FormatSequenceNo(kind EntityKind, n int64) string {
	return fmt.Sprintf("%s%03d", kind.Prefix(), n)
}

// Remark is an append-only audit note written alongside every lead or channel
// partner mutation. EmpName and EmpNo are copied from the acting employee at
// write time and are a historical snapshot, not a reference to be joined.
type Remark struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Remark       string             `bson:"remark" json:"remark"`
	ParentNo     string             `bson:"parentNo" json:"parentNo"`
	ParentID     primitive.ObjectID `bson:"parentId" json:"parentId"`
	EmpName      string             `bson:"empName" json:"empName"`
	EmpNo        string             `bson:"empNo" json:"empNo"`
	FollowUpDate *time.Time         `bson:"followUpDate" json:"followUpDate"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
