package audit

// Action tags form a closed enumeration; handlers must not invent ad-hoc
// strings.
type Action string

const (
	ActionLogin             Action = "auth.login"
	ActionLogout            Action = "auth.logout"
	ActionLoginFailed       Action = "auth.login_failed"
	ActionUserCreated       Action = "user.created"
	ActionRoleChanged       Action = "user.role_changed"
	ActionInviteRedeemed    Action = "user.invite_redeemed"
	ActionInviteCreated     Action = "invite.created"
	ActionInviteDeleted     Action = "invite.deleted"
	ActionInviteRedeemFail  Action = "invite.redeem_failed"
	ActionTemplateCreated   Action = "template.created"
	ActionTemplateDeleted   Action = "template.deleted"
	ActionMemeCreated       Action = "meme.created"
	ActionMemeUpdated       Action = "meme.updated"
	ActionMemeDeleted       Action = "meme.deleted"
	ActionVisibilityChanged Action = "meme.visibility_changed"
	ActionVoteCast          Action = "vote.cast"
	ActionVoteRemoved       Action = "vote.removed"
	ActionAdminBootstrap    Action = "admin.bootstrap"
	ActionAccessDenied      Action = "access.denied"
)
