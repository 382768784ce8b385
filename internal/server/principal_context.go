package server

import (
	"context"

	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	iamtypes "github.com/jacksonlee411/registry-console/modules/iam/domain/types"
)

type principalContextKey struct{}

type sidContextKey struct{}

func withPrincipal(ctx context.Context, p iamtypes.UserProfile) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func currentPrincipal(ctx context.Context) (iamtypes.UserProfile, bool) {
	p, ok := ctx.Value(principalContextKey{}).(iamtypes.UserProfile)
	return p, ok
}

func withSID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sidContextKey{}, sid)
}

func currentSID(ctx context.Context) string {
	s, _ := ctx.Value(sidContextKey{}).(string)
	return s
}

func actorOf(p iamtypes.UserProfile) activitytypes.Actor {
	return activitytypes.Actor{UserID: p.UID, Email: p.Email, Name: p.DisplayName}
}

func currentActor(ctx context.Context) activitytypes.Actor {
	p, _ := currentPrincipal(ctx)
	return actorOf(p)
}
