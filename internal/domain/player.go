package domain

// Player - аккаунт локального игрока (коллаборатор аутентификации)
type Player struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// DisplayName предпочитает ник, затем логин
func (p Player) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.Username
}
