// Package conversation keeps the chats a user chose to save.
//
// Each plan allows a fixed number of saved conversations (Plan.SavedChats).
// Service.Save enforces that allowance; the Postgres store counts and inserts
// under a per-user advisory lock so concurrent saves cannot exceed it.
//
//	svc := conversation.NewService(conversation.NewPGStore(pool), catalog.SavedChatLimit,
//		conversation.WithLogger(log),
//		conversation.WithAuditor(auditor),
//	)
//
//	c, err := svc.Save(ctx, userID, planID, conversation.SaveInput{Title: "Brake squeal", Messages: msgs})
//	var limitErr *conversation.LimitError
//	if errors.As(err, &limitErr) {
//		// 403 with limitErr.Limit and limitErr.Count
//	}
package conversation
