package awsjson

import (
	"localcloud/internal/storage/engine"
)

func (a *API) cognito(op string, body []byte) (any, error) {
	switch op {
	case "CreateUserPool":
		var req struct {
			PoolName string `json:"PoolName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		pool, err := a.eng.CreateUserPool(req.PoolName)
		if err != nil {
			return nil, err
		}
		return map[string]any{"UserPool": poolEntry(pool)}, nil

	case "ListUserPools":
		pools, err := a.eng.ListUserPools()
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(pools))
		for i := range pools {
			out = append(out, poolEntry(&pools[i]))
		}
		return map[string]any{"UserPools": out}, nil

	case "DeleteUserPool":
		var req struct {
			UserPoolID string `json:"UserPoolId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteUserPool(req.UserPoolID); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "AdminCreateUser":
		var req struct {
			UserPoolID     string `json:"UserPoolId"`
			Username       string `json:"Username"`
			UserAttributes []struct {
				Name  string `json:"Name"`
				Value string `json:"Value"`
			} `json:"UserAttributes"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		var attrs map[string]string
		for _, attr := range req.UserAttributes {
			if attrs == nil {
				attrs = map[string]string{}
			}
			attrs[attr.Name] = attr.Value
		}
		u, err := a.eng.AdminCreateUser(req.UserPoolID, req.Username, attrs)
		if err != nil {
			return nil, err
		}
		userAttrs, err := a.eng.UserAttributes(req.UserPoolID, req.Username)
		if err != nil {
			return nil, err
		}
		return map[string]any{"User": userEntry(u, userAttrs, "Attributes")}, nil

	case "AdminGetUser":
		var req struct {
			UserPoolID string `json:"UserPoolId"`
			Username   string `json:"Username"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		u, err := a.eng.AdminGetUser(req.UserPoolID, req.Username)
		if err != nil {
			return nil, err
		}
		attrs, err := a.eng.UserAttributes(req.UserPoolID, req.Username)
		if err != nil {
			return nil, err
		}
		// AdminGetUser flattens the user instead of nesting it.
		out := userEntry(u, attrs, "UserAttributes")
		return out, nil

	case "ListUsers":
		var req struct {
			UserPoolID string `json:"UserPoolId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		users, err := a.eng.ListUsers(req.UserPoolID)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(users))
		for i := range users {
			attrs, err := a.eng.UserAttributes(req.UserPoolID, users[i].Username)
			if err != nil {
				return nil, err
			}
			out = append(out, userEntry(&users[i], attrs, "Attributes"))
		}
		return map[string]any{"Users": out}, nil

	case "AdminDeleteUser":
		var req struct {
			UserPoolID string `json:"UserPoolId"`
			Username   string `json:"Username"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.AdminDeleteUser(req.UserPoolID, req.Username); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "CreateGroup":
		var req struct {
			UserPoolID  string `json:"UserPoolId"`
			GroupName   string `json:"GroupName"`
			Description string `json:"Description"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		g, err := a.eng.CreateGroup(req.UserPoolID, req.GroupName, req.Description)
		if err != nil {
			return nil, err
		}
		return map[string]any{"Group": groupEntry(g)}, nil

	case "AdminAddUserToGroup":
		var req struct {
			UserPoolID string `json:"UserPoolId"`
			Username   string `json:"Username"`
			GroupName  string `json:"GroupName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.AdminAddUserToGroup(req.UserPoolID, req.Username, req.GroupName); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "AdminListGroupsForUser":
		var req struct {
			UserPoolID string `json:"UserPoolId"`
			Username   string `json:"Username"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		groups, err := a.eng.AdminListGroupsForUser(req.UserPoolID, req.Username)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(groups))
		for i := range groups {
			out = append(out, groupEntry(&groups[i]))
		}
		return map[string]any{"Groups": out}, nil
	}
	return nil, notImplemented("AWSCognitoIdentityProviderService", op)
}

func poolEntry(p *engine.UserPool) map[string]any {
	return map[string]any{
		"Id":           p.ID,
		"Name":         p.Name,
		"CreationDate": epoch(p.CreatedAt),
	}
}

func userEntry(u *engine.User, attrs []engine.UserAttribute, attrField string) map[string]any {
	type attribute struct {
		Name  string `json:"Name"`
		Value string `json:"Value"`
	}
	list := make([]attribute, 0, len(attrs))
	for _, attr := range attrs {
		list = append(list, attribute{Name: attr.Name, Value: attr.Value})
	}
	return map[string]any{
		"Username":   u.Username,
		"UserStatus": u.Status,
		"Enabled":    u.Enabled,
		"UserCreateDate": epoch(u.CreatedAt),
		attrField:    list,
	}
}

func groupEntry(g *engine.Group) map[string]any {
	return map[string]any{
		"GroupName":    g.GroupName,
		"UserPoolId":   g.PoolID,
		"Description":  g.Description,
		"CreationDate": epoch(g.CreatedAt),
	}
}
