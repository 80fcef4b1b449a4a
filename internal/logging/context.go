package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type repositoryCtxKey struct{}
type branchLanguageCtxKey struct{}
type operationCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)

	if repo := RepositoryFromContext(ctx); repo != "" {
		fields = append(fields, zap.String("repository.id", repo))
	}
	if bl := BranchLanguageFromContext(ctx); bl != "" {
		fields = append(fields, zap.String("branch_language.id", bl))
	}
	if op := OperationFromContext(ctx); op != "" {
		fields = append(fields, zap.String("operation", op))
	}

	return fields
}

// WithRepository adds the repository id to context.
func WithRepository(ctx context.Context, repositoryID string) context.Context {
	return context.WithValue(ctx, repositoryCtxKey{}, repositoryID)
}

// RepositoryFromContext extracts the repository id, or "".
func RepositoryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(repositoryCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithBranchLanguage adds the branch language id to context.
func WithBranchLanguage(ctx context.Context, branchLanguageID string) context.Context {
	return context.WithValue(ctx, branchLanguageCtxKey{}, branchLanguageID)
}

// BranchLanguageFromContext extracts the branch language id, or "".
func BranchLanguageFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(branchLanguageCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithOperation adds the operation name to context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationCtxKey{}, operation)
}

// OperationFromContext extracts the operation name, or "".
func OperationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operationCtxKey{}).(string); ok {
		return v
	}
	return ""
}
