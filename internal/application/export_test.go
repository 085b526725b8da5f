package application

// SetMentorsForTest replaces the service roster so external test packages can
// simulate mentors being removed from the configuration.
func SetMentorsForTest(s *AssignmentService, mentors map[string]Mentor) {
	s.mentors = mentors
}
