package model

import "time"

// Bookable resource kinds.  Labs and equipment live in separate
// tables but share the booking flow, so bookings carry the kind
// next to the resource ID.
const (
	ResourceKindLab       = "lab"
	ResourceKindEquipment = "equipment"
)

// Equipment availability states stored in equipment.status.  Only
// StatusAvailable equipment may be booked.
const (
	EquipmentAvailable   = "available"
	EquipmentInUse       = "in_use"
	EquipmentMaintenance = "maintenance"
)

// Lab represents a row of the `labs` table.  A lab is bookable as a
// whole room.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – unique lab name.
//  Location  – building/room description.
//  Capacity  – maximum number of occupants.
//  IsActive  – inactive labs are hidden from booking.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Lab struct {
	ID        uint64    // labs.id
	Name      string    // labs.name
	Location  string    // labs.location
	Capacity  uint32    // labs.capacity
	IsActive  bool      // labs.is_active
	CreatedAt time.Time // labs.created_at
	UpdatedAt time.Time // labs.updated_at
}

// Equipment represents a row of the `equipment` table.  Equipment
// belongs to a lab and carries an availability status maintained by
// the maintenance workflow.
//
// Fields:
//  ID        – primary key identifier.
//  LabID     – lab the equipment is installed in.
//  Name      – equipment name.
//  Model     – manufacturer model string.
//  Status    – available | in_use | maintenance.
//  IsActive  – decommissioned equipment is inactive.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Equipment struct {
	ID        uint64    // equipment.id
	LabID     uint64    // equipment.lab_id
	Name      string    // equipment.name
	Model     string    // equipment.model
	Status    string    // equipment.status
	IsActive  bool      // equipment.is_active
	CreatedAt time.Time // equipment.created_at
	UpdatedAt time.Time // equipment.updated_at
}
