package circ

// Rejection codes that can never be overridden: the underlying
// condition is a hard data problem, not a policy decision.
var nonOverridable = map[string]struct{}{
	"OPEN_CIRCULATION_EXISTS": {},
	"ASSET_COPY_NOT_FOUND":    {},
	"ACTOR_USER_NOT_FOUND":    {},
}

// OverrideEligible reports whether a rejection code can be retried
// with an override. It is a pure function of the code: empty codes and
// the hard-failure set are never eligible, everything else is.
func OverrideEligible(code string) bool {
	if code == "" {
		return false
	}
	_, hard := nonOverridable[code]
	return !hard
}

// OverridePermission derives the permission name a staff account needs
// to override a given rejection.
func OverridePermission(code string) string {
	if code == "" {
		return ""
	}
	return code + overrideSuffix
}

// Failure is a business-rule rejection normalized for callers, with
// the override contract attached.
type Failure struct {
	Code             string `json:"code"`
	Desc             string `json:"desc"`
	OverrideEligible bool   `json:"overrideEligible"`
	OverridePerm     string `json:"overridePerm,omitempty"`
}

func (f *Failure) Error() string {
	return "circulation rejected: " + f.Code
}

func newFailure(code, desc string) *Failure {
	f := &Failure{Code: code, Desc: desc, OverrideEligible: OverrideEligible(code)}
	if f.OverrideEligible {
		f.OverridePerm = OverridePermission(code)
	}
	return f
}
