package extraction

// Signals are conversational cues that drive the qualification verdict independently of
// the interest score.
type Signals struct {
	AppointmentScheduled bool
	PricingRequested     bool
	CallbackRequested    bool
	ContactVolunteered   bool
	Declined             bool
	RemovalRequested     bool
	HungUpImmediately    bool
}

func (s Signals) negative() bool {
	return s.Declined || s.RemovalRequested || s.HungUpImmediately
}

func (s Signals) closing() bool {
	return s.AppointmentScheduled || s.PricingRequested || s.CallbackRequested
}

// Qualifies applies the qualification rule. Interest >= 6 or volunteered contact details
// qualify; a decline, removal request, hang-up or interest <= 3 disqualifies; closing
// signals (appointment, pricing, callback) are checked last and win over a decline.
func Qualifies(f Facts, s Signals) bool {
	interest := f.Interest()
	qualified := interest >= 6 || s.ContactVolunteered
	if s.negative() || (f.InterestLevel != nil && interest <= 3) {
		qualified = false
	}
	if s.closing() {
		qualified = true
	}
	return qualified
}
