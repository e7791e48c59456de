// pkg/evactron/fault.go
package evactron

// Fault is a device fault condition. Faults are errors so callers can return
// them directly.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return f.Message
}

var (
	LowPressureFault   = &Fault{1, "The unit has encountered a low pressure fault."}
	HighPressureFault  = &Fault{2, "The unit has encountered a high pressure fault."}
	PlasmaFault        = &Fault{3, "The unit has encountered a plasma fault."}
	PlasmaOutFault     = &Fault{4, "The unit has detected that the plasma went out during the plasma state."}
	CableFault         = &Fault{7, "The RF cable is not connected."}
	PressureGaugeFault = &Fault{8, "The pressure gauge is not connected."}
	EepromConfigFault  = &Fault{9, "The EEPROM configuration has become corrupted. It will be reset to factory defaults once acknowledged."}
	EventLogFault      = &Fault{10, "The event log has become corrupted. It will be cleared and reformatted once the fault has been acknowledged."}
	InternalFault      = &Fault{11, "An internal error has occurred."}
	PressureTableFault = &Fault{12, "An invalid pressure conversion table has been detected."}
)

var faultsByCode = map[int]*Fault{
	1:  LowPressureFault,
	2:  HighPressureFault,
	3:  PlasmaFault,
	4:  PlasmaOutFault,
	7:  CableFault,
	8:  PressureGaugeFault,
	9:  EepromConfigFault,
	10: EventLogFault,
	11: InternalFault,
	12: PressureTableFault,
}

// FaultByCode returns the fault for a vendor fault code, or nil when the code
// does not name a fault (0 means no fault).
func FaultByCode(code int) *Fault {
	return faultsByCode[code]
}

// FaultReport holds the dynamic and latched fault flags.
//
// The dynamic fault is set as long as the underlying condition persists. The
// latched fault is set when the condition is first detected and stays set until
// the condition has cleared and the fault is acknowledged, either on the front
// panel or through ClearFaults.
type FaultReport struct {
	Dynamic *Fault
	Latched *Fault
}

// Any reports whether either flag is set.
func (r FaultReport) Any() bool {
	return r.Dynamic != nil || r.Latched != nil
}
