package session

// Reduce returns the state that results from applying action to state. It
// never mutates its input, including the profile CurrentUser points at. On
// error the returned state is the input, unchanged.
func Reduce(state State, action Action) (State, error) {
	switch a := action.(type) {
	case AddUserAddress:
		state.UserAddress = a.Address
		return state, nil
	case AddUser:
		profile := a.Profile
		state.CurrentUser = &profile
		return state, nil
	case SubscribeUser:
		profile := state.Profile()
		profile.Subscribed = a.Subscribed
		state.CurrentUser = &profile
		return state, nil
	case ApproveVault:
		state.VaultApproved = a.Approved
		return state, nil
	default:
		return state, &UnknownActionError{Action: action}
	}
}

// Fold reduces actions over state in order and stops at the first error.
func Fold(state State, actions ...Action) (State, error) {
	for _, action := range actions {
		next, err := Reduce(state, action)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}
