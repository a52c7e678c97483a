package handlers

import "strings"

// Attendee is the minimal shape the ranking function needs from a
// calendar invitee or meeting-transcript participant.
type Attendee struct {
	Email string
}

func domainOf(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

func isCustomerDomain(email string, customerDomains []string) bool {
	d := domainOf(email)
	for _, cd := range customerDomains {
		if strings.EqualFold(d, cd) {
			return true
		}
	}
	return false
}

// SelectPrimaryAttendee picks the CRM contact candidate for a calendar or
// meeting event (spec.md §8 invariant 8): the first attendee, in list
// order, whose domain is external (not in customerDomains). Internal
// attendees are never used for lead creation when any external attendee
// is present; if every attendee is internal, the first attendee in the
// list (the organizer/owner by convention) is used instead.
func SelectPrimaryAttendee(attendees []Attendee, customerDomains []string) (Attendee, bool) {
	for _, a := range attendees {
		if !isCustomerDomain(a.Email, customerDomains) {
			return a, true
		}
	}
	if len(attendees) > 0 {
		return attendees[0], true
	}
	return Attendee{}, false
}
