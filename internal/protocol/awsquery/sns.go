package awsquery

import (
	"net/http"
	"time"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

type createTopicResult struct {
	TopicArn string `xml:"TopicArn"`
}

type subscribeResult struct {
	SubscriptionArn string `xml:"SubscriptionArn"`
}

type publishResult struct {
	MessageID string `xml:"MessageId"`
}

type listTopicsResult struct {
	Topics []topicMember `xml:"Topics>member"`
}

type topicMember struct {
	TopicArn string `xml:"TopicArn"`
}

func (a *API) sns(action string, r *http.Request) (any, error) {
	switch action {
	case "CreateTopic":
		topic, err := a.eng.CreateTopic(r.Form.Get("Name"))
		if err != nil {
			return nil, err
		}
		return createTopicResult{TopicArn: topic.ARN}, nil

	case "Subscribe":
		sub, err := a.eng.Subscribe(r.Form.Get("TopicArn"), r.Form.Get("Protocol"), r.Form.Get("Endpoint"))
		if err != nil {
			return nil, err
		}
		return subscribeResult{SubscriptionArn: sub.ARN}, nil

	case "Publish":
		id, err := a.eng.PublishToTopic(r.Form.Get("TopicArn"), r.Form.Get("Subject"), r.Form.Get("Message"))
		if err != nil {
			return nil, err
		}
		return publishResult{MessageID: id}, nil

	case "ListTopics":
		topics, err := a.eng.ListTopics()
		if err != nil {
			return nil, err
		}
		var out listTopicsResult
		for _, topic := range topics {
			out.Topics = append(out.Topics, topicMember{TopicArn: topic.ARN})
		}
		return out, nil
	}
	return nil, apperr.NotImplemented("SNS action " + action)
}

type callerIdentityResult struct {
	Arn     string `xml:"Arn"`
	UserID  string `xml:"UserId"`
	Account string `xml:"Account"`
}

func (a *API) sts(string) (any, error) {
	return callerIdentityResult{
		Arn:     "arn:aws:iam::" + arn.AccountID + ":root",
		UserID:  arn.AccountID,
		Account: arn.AccountID,
	}, nil
}

type iamUserResult struct {
	User iamWireUser `xml:"User"`
}

type listUsersResult struct {
	Users []iamWireUser `xml:"Users>member"`
}

type iamWireUser struct {
	UserName   string `xml:"UserName"`
	UserID     string `xml:"UserId"`
	Arn        string `xml:"Arn"`
	CreateDate string `xml:"CreateDate"`
}

func (a *API) iam(action string, r *http.Request) (any, error) {
	switch action {
	case "CreateUser":
		u, err := a.eng.CreateIAMUser(r.Form.Get("UserName"))
		if err != nil {
			return nil, err
		}
		return iamUserResult{User: wireUser(u.Name, u.ARN, u.CreatedAt)}, nil

	case "GetUser":
		u, err := a.eng.GetIAMUser(r.Form.Get("UserName"))
		if err != nil {
			return nil, err
		}
		return iamUserResult{User: wireUser(u.Name, u.ARN, u.CreatedAt)}, nil

	case "ListUsers":
		users, err := a.eng.ListIAMUsers()
		if err != nil {
			return nil, err
		}
		var out listUsersResult
		for _, u := range users {
			out.Users = append(out.Users, wireUser(u.Name, u.ARN, u.CreatedAt))
		}
		return out, nil
	}
	return nil, apperr.NotImplemented("IAM action " + action)
}

func wireUser(name, userARN string, createdAt int64) iamWireUser {
	return iamWireUser{
		UserName:   name,
		UserID:     name,
		Arn:        userARN,
		CreateDate: time.Unix(0, createdAt).UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}
