package gate

// Action is the verb half of a permission.
type Action string

const (
	ActionAccess  Action = "access"
	ActionView    Action = "view"
	ActionManage  Action = "manage"
	ActionEdit    Action = "edit"
	ActionOperate Action = "operate"
)
