// swag annotation stubs. The handlers live in appointments.go, server.go and
// admin.go; these functions only carry the comments `swag init` reads.
package server

//	@title			rtcore API
//	@version		1.0
//	@description	Appointments, chat history and presence for the NeuroPath real-time core.
//	@BasePath		/
//	@securityDefinitions.apikey	Bearer
//	@in							header
//	@name						Authorization
//	@securityDefinitions.basic	AdminBasic

// ── Appointments ─────────────────────────────────────────────────────────────

// @Summary	List your appointments
// @Tags		appointments
// @Security	Bearer
// @Produce	json
// @Success	200	{array}	model.Appointment
// @Router		/api/appointments [get]
func swagListAppointments() {}

// @Summary	Book an appointment (patients only)
// @Tags		appointments
// @Security	Bearer
// @Accept		json
// @Produce	json
// @Param		body	body		bookRequest	true	"Slot and neurologist"
// @Success	201		{object}	model.Appointment
// @Failure	400		{object}	proto.ErrorPayload
// @Failure	403		{object}	proto.ErrorPayload
// @Router		/api/appointments [post]
func swagBook() {}

// @Summary	Get one appointment
// @Tags		appointments
// @Security	Bearer
// @Produce	json
// @Param		id	path		string	true	"Appointment id"
// @Success	200	{object}	model.Appointment
// @Failure	403	{object}	proto.ErrorPayload
// @Failure	404	{object}	proto.ErrorPayload
// @Router		/api/appointments/{id} [get]
func swagGetAppointment() {}

// @Summary	Accept or reject a pending appointment
// @Tags		appointments
// @Security	Bearer
// @Accept		json
// @Produce	json
// @Param		id		path		string			true	"Appointment id"
// @Param		body	body		respondRequest	true	"Decision"
// @Success	200		{object}	model.Appointment
// @Failure	409		{object}	proto.ErrorPayload
// @Router		/api/appointments/{id}/respond [post]
func swagRespond() {}

// @Summary	Cancel a confirmed appointment
// @Tags		appointments
// @Security	Bearer
// @Param		id	path		string	true	"Appointment id"
// @Success	200	{object}	model.Appointment
// @Router		/api/appointments/{id}/cancel [post]
func swagCancel() {}

// @Summary	Mark a confirmed appointment completed
// @Tags		appointments
// @Security	Bearer
// @Param		id	path		string	true	"Appointment id"
// @Success	200	{object}	model.Appointment
// @Router		/api/appointments/{id}/complete [post]
func swagComplete() {}

// ── Chat ─────────────────────────────────────────────────────────────────────

// @Summary	Chat history, oldest first
// @Tags		chat
// @Security	Bearer
// @Param		id		path	string	true	"Appointment id"
// @Param		limit	query	int		false	"Newest N messages"
// @Success	200		{array}	model.ChatMessage
// @Router		/api/appointments/{id}/messages [get]
func swagHistory() {}

// @Summary	Send a chat message
// @Tags		chat
// @Security	Bearer
// @Param		id		path		string			true	"Appointment id"
// @Param		body	body		messageRequest	true	"Message"
// @Success	201		{object}	model.ChatMessage
// @Router		/api/appointments/{id}/messages [post]
func swagSendMessage() {}

// ── Presence & calls ─────────────────────────────────────────────────────────

// @Summary	Online state of a user
// @Tags		presence
// @Security	Bearer
// @Param		userID	path		string	true	"User id"
// @Success	200		{object}	proto.PresencePayload
// @Router		/api/presence/{userID} [get]
func swagPresence() {}

// @Summary	ICE servers for RTCPeerConnection
// @Tags		calls
// @Security	Bearer
// @Success	200	{object}	map[string]any
// @Router		/api/ice-servers [get]
func swagICEServers() {}

// ── Admin ────────────────────────────────────────────────────────────────────

// @Summary	Live connections
// @Tags		admin
// @Security	AdminBasic
// @Success	200	{object}	map[string]any
// @Router		/api/admin/connections [get]
func swagAdminConnections() {}

// @Summary	Live and recent call sessions
// @Tags		admin
// @Security	AdminBasic
// @Success	200	{object}	map[string]any
// @Router		/api/admin/calls [get]
func swagAdminCalls() {}

// @Summary	Recent log lines
// @Tags		admin
// @Security	AdminBasic
// @Param		n	query	int	false	"Newest N lines"
// @Success	200	{array}	LogEntry
// @Router		/api/admin/logs [get]
func swagAdminLogs() {}
