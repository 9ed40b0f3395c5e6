package session

import "github.com/hitoshi/pertindetu/internal/capability"

// ActorFromState はセッション状態から認可判定に使う Actor を組み立てる。
func ActorFromState(st State) capability.Actor {
	actor := capability.Actor{
		UserID:  st.UserID,
		IsAdmin: st.IsAdmin,
	}
	if st.Provider != nil {
		actor.ProviderID = st.Provider.ID
	}
	return actor
}
