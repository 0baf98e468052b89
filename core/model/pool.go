package model

import "time"

// EmergencyPool is the standby roster used for emergency-tier requests.
// The three rosters are disjoint.
type EmergencyPool struct {
	CriticalResponse  []string  `json:"critical_response"`
	SpecialistBackup  []string  `json:"specialist_backup"`
	OnCallSupervisors []string  `json:"on_call_supervisors"`
	RotatedAt         time.Time `json:"rotated_at"`
	NextRotation      time.Time `json:"next_rotation"`
}

// Members returns all roster members.
func (p EmergencyPool) Members() []string {
	out := make([]string, 0, len(p.CriticalResponse)+len(p.SpecialistBackup)+len(p.OnCallSupervisors))
	out = append(out, p.CriticalResponse...)
	out = append(out, p.SpecialistBackup...)
	return append(out, p.OnCallSupervisors...)
}
