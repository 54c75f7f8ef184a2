package notify

// createdAccountData feeds the created_account template.
type createdAccountData struct {
	DisplayName string
	Email       string
	Password    string
	AppName     string
}

// emailTemplates holds the embedded HTML mail bodies.
const emailTemplates = `
{{define "created_account"}}
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Account created</title></head>
<body style="font-family: sans-serif; color: #333;">
  <h2>Welcome to {{.AppName}}</h2>
  <p>Hello {{.DisplayName}},</p>
  <p>An account has been created for you.</p>
  <ul>
    <li>Login: <strong>{{.Email}}</strong></li>
    {{if .Password}}<li>Password: <strong>{{.Password}}</strong></li>{{end}}
  </ul>
  <p>Please change your password after your first login.</p>
</body>
</html>
{{end}}
`
