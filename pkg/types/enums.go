package types

// Phase identifies the agent pipeline generation that produced or is
// processing a trip or message.
type Phase string

const (
	PhaseLangflow  Phase = "phase1_langflow"
	PhaseCrewAI    Phase = "phase2_crewai"
	PhaseAutoGen   Phase = "phase3_autogen"
	PhaseLangGraph Phase = "phase4_langgraph"
)

// Phases lists every phase in workflow order.
var Phases = []Phase{PhaseLangflow, PhaseCrewAI, PhaseAutoGen, PhaseLangGraph}

// Valid reports whether p is one of the four workflow phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseLangflow, PhaseCrewAI, PhaseAutoGen, PhaseLangGraph:
		return true
	}
	return false
}

// ParsePhase converts s to a Phase or returns a ValidationError.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", invalid("trip", "phase", "oneof phase1_langflow phase2_crewai phase3_autogen phase4_langgraph", s)
	}
	return p, nil
}

// Accommodation is the category of lodging requested for a trip.
type Accommodation string

const (
	AccommodationHotel          Accommodation = "hotel"
	AccommodationResort         Accommodation = "resort"
	AccommodationHostel         Accommodation = "hostel"
	AccommodationApartment      Accommodation = "apartment"
	AccommodationGuesthouse     Accommodation = "guesthouse"
	AccommodationLuxury         Accommodation = "luxury"
	AccommodationOwnPlace       Accommodation = "own_place"
	AccommodationFriendPlace    Accommodation = "friend_place"
	AccommodationOfficial       Accommodation = "official_accommodation"
	AccommodationBudget         Accommodation = "budget"
	AccommodationFamilyFriendly Accommodation = "family-friendly"
	AccommodationBusiness       Accommodation = "business"
	AccommodationYouthHostel    Accommodation = "youth hostel"
)

// Accommodations lists every accepted accommodation category.
var Accommodations = []Accommodation{
	AccommodationHotel,
	AccommodationResort,
	AccommodationHostel,
	AccommodationApartment,
	AccommodationGuesthouse,
	AccommodationLuxury,
	AccommodationOwnPlace,
	AccommodationFriendPlace,
	AccommodationOfficial,
	AccommodationBudget,
	AccommodationFamilyFriendly,
	AccommodationBusiness,
	AccommodationYouthHostel,
}

func (a Accommodation) Valid() bool {
	switch a {
	case AccommodationHotel, AccommodationResort, AccommodationHostel,
		AccommodationApartment, AccommodationGuesthouse, AccommodationLuxury,
		AccommodationOwnPlace, AccommodationFriendPlace, AccommodationOfficial,
		AccommodationBudget, AccommodationFamilyFriendly, AccommodationBusiness,
		AccommodationYouthHostel:
		return true
	}
	return false
}

// ParseAccommodation converts s to an Accommodation. The value is matched
// exactly; no alias mapping is applied.
func ParseAccommodation(s string) (Accommodation, error) {
	a := Accommodation(s)
	if !a.Valid() {
		return "", invalid("trip", "accommodation_type", "oneof accommodation categories", s)
	}
	return a, nil
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ParseRole converts s to a Role or returns a ValidationError.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", invalid("chat_message", "role", "oneof user assistant system", s)
	}
	return r, nil
}
