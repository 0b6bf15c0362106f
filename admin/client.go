package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
	"github.com/kyptronix/spectrum-admin/observe"
)

// Transport sends a resolved request and returns the raw response body.
// transport.HTTP is the production implementation.
type Transport interface {
	Do(ctx context.Context, req endpoint.Request) (json.RawMessage, error)
}

// Client is the typed facade over the query cache, the mutation
// dispatcher and the endpoint catalog.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: every error is a *cache.Error or wraps one.
type Client struct {
	transport  Transport
	resolver   *endpoint.Resolver
	keyer      cache.Keyer
	store      *cache.Store
	dispatcher *cache.Dispatcher
	logger     observe.Logger
	ownsStore  bool
}

type clientOptions struct {
	resolver    *endpoint.Resolver
	keyer       cache.Keyer
	store       *cache.Store
	storeOpts   []cache.Option
	policy      cache.ConflictPolicy
	instruments *observe.Instruments
}

// Option configures a Client.
type Option func(*clientOptions)

// WithStore uses an existing store. The caller keeps ownership and closes
// it.
func WithStore(s *cache.Store) Option {
	return func(o *clientOptions) { o.store = s }
}

// WithStoreOptions passes options to the store the client creates.
func WithStoreOptions(opts ...cache.Option) Option {
	return func(o *clientOptions) { o.storeOpts = append(o.storeOpts, opts...) }
}

// WithResolver replaces the endpoint catalog.
func WithResolver(r *endpoint.Resolver) Option {
	return func(o *clientOptions) { o.resolver = r }
}

// WithKeyer replaces the cache key derivation.
func WithKeyer(k cache.Keyer) Option {
	return func(o *clientOptions) { o.keyer = k }
}

// WithConflictPolicy selects how concurrent mutations on one target are
// handled. The default rejects the second one.
func WithConflictPolicy(p cache.ConflictPolicy) Option {
	return func(o *clientOptions) { o.policy = p }
}

// WithInstruments wires tracing, metrics and logging into the store and
// the dispatcher.
func WithInstruments(in observe.Instruments) Option {
	return func(o *clientOptions) { o.instruments = &in }
}

// NewClient creates a Client over t.
func NewClient(t Transport, opts ...Option) *Client {
	o := clientOptions{policy: cache.ConflictReject}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = endpoint.Default()
	}
	if o.keyer == nil {
		o.keyer = cache.NewDefaultKeyer()
	}

	c := &Client{
		transport: t,
		resolver:  o.resolver,
		keyer:     o.keyer,
		store:     o.store,
		logger:    observe.NopLogger(),
	}
	dispOpts := []cache.DispatcherOption{cache.WithConflictPolicy(o.policy)}
	if o.instruments != nil {
		c.logger = o.instruments.Logger
		dispOpts = append(dispOpts, cache.WithDispatcherInstruments(*o.instruments))
	}
	if c.store == nil {
		storeOpts := o.storeOpts
		if o.instruments != nil {
			storeOpts = append([]cache.Option{cache.WithInstruments(*o.instruments)}, storeOpts...)
		}
		c.store = cache.NewStore(storeOpts...)
		c.ownsStore = true
	}
	c.dispatcher = cache.NewDispatcher(c.store, Invalidations, dispOpts...)
	return c
}

// Store returns the underlying cache.
func (c *Client) Store() *cache.Store { return c.store }

// Dispatcher returns the mutation dispatcher.
func (c *Client) Dispatcher() *cache.Dispatcher { return c.dispatcher }

// Close closes the store if the client created it.
func (c *Client) Close() {
	if c.ownsStore {
		c.store.Close()
	}
}

// Key returns the cache key of q.
func Key[T any](c *Client, q Query[T]) (cache.Key, error) {
	key, err := c.keyer.Key(q.Endpoint, q.Params)
	if err != nil {
		return "", cache.ValidationError(q.Endpoint, err.Error())
	}
	return key, nil
}

// Fetch returns q's data, from the cache when fresh.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) (T, error) {
	var zero T
	key, err := Key(c, q)
	if err != nil {
		return zero, err
	}
	v, err := c.store.Request(ctx, key, q.Tagger(), c.fetcher(q.Endpoint, q.Params, func(raw json.RawMessage) (any, error) {
		return q.decode(raw)
	}))
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, cache.ParseError(q.Endpoint, fmt.Errorf("cached value is %T", v))
	}
	return out, nil
}

// fetcher builds the network call behind a query. The returned function is
// remembered by the store and reused for refetches.
func (c *Client) fetcher(name string, params endpoint.Params, decode func(json.RawMessage) (any, error)) cache.FetchFunc {
	return func(ctx context.Context) (any, error) {
		req, err := c.resolver.Resolve(name, params)
		if err != nil {
			return nil, err
		}
		raw, err := c.transport.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		return decode(raw)
	}
}

// mutate dispatches one write and decodes its reply.
// The reply is read from field when present, else from the whole body.
func mutate[T any](ctx context.Context, c *Client, kind, field string, target cache.Tag, params endpoint.Params) (T, error) {
	var zero T
	req, err := c.resolver.Resolve(kind, params)
	if err != nil {
		return zero, err
	}
	v, err := c.dispatcher.Mutate(ctx, cache.Mutation{
		Kind:   kind,
		Target: target,
		Exec: func(ctx context.Context) (any, error) {
			raw, err := c.transport.Do(ctx, req)
			if err != nil {
				return nil, err
			}
			return decodeField[T](kind, field, raw)
		},
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Reports returns one page of post reports.
func (c *Client) Reports(ctx context.Context, page cache.PageRequest) (ReportPage, error) {
	return Fetch(ctx, c, ReportsQuery(page))
}

// BlockedUsers returns one page of admin blocks.
func (c *Client) BlockedUsers(ctx context.Context, page cache.PageRequest) (BlockedUsersPage, error) {
	return Fetch(ctx, c, BlockedUsersQuery(page))
}

// Stats returns the moderation counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	return Fetch(ctx, c, StatsQuery())
}

// Posts returns one page of posts.
func (c *Client) Posts(ctx context.Context, page cache.PageRequest) (PostPage, error) {
	return Fetch(ctx, c, PostsQuery(page))
}

// Users returns one page of accounts.
func (c *Client) Users(ctx context.Context, page cache.PageRequest) (UserPage, error) {
	return Fetch(ctx, c, UsersQuery(page))
}

// UserStats returns account statistics.
func (c *Client) UserStats(ctx context.Context) (Counters, error) {
	return Fetch(ctx, c, UserStatsQuery())
}

// Packages returns one page of packages.
func (c *Client) Packages(ctx context.Context, page cache.PageRequest) (PackagePage, error) {
	return Fetch(ctx, c, PackagesQuery(page))
}

// ActivePackages returns the packages open for purchase.
func (c *Client) ActivePackages(ctx context.Context) ([]Package, error) {
	return Fetch(ctx, c, ActivePackagesQuery())
}

// PackageStats returns package statistics.
func (c *Client) PackageStats(ctx context.Context) (Counters, error) {
	return Fetch(ctx, c, PackageStatsQuery())
}

// Package returns one package.
func (c *Client) Package(ctx context.Context, id string) (Package, error) {
	return Fetch(ctx, c, PackageQuery(id))
}

// AnalyticsReports returns one page of generated reports.
func (c *Client) AnalyticsReports(ctx context.Context, page cache.PageRequest) (AnalyticsReportPage, error) {
	return Fetch(ctx, c, AnalyticsReportsQuery(page))
}

// DeletePost deletes a post and resolves its reports. postAuthorUserID
// may be empty.
func (c *Client) DeletePost(ctx context.Context, postID, postAuthorUserID string) (DeletePostResult, error) {
	return mutate[DeletePostResult](ctx, c, endpoint.PostsDelete, "", cache.Instance(endpoint.CategoryPosts, postID),
		endpoint.Params{"postId": postID, "postAuthorUserId": postAuthorUserID})
}

// BlockUser blocks an account as the admin.
func (c *Client) BlockUser(ctx context.Context, userID string) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.UsersBlock, "", cache.Instance(endpoint.CategoryUsers, userID),
		endpoint.Params{"userId": userID})
}

// UnblockUser lifts an admin block.
func (c *Client) UnblockUser(ctx context.Context, userID string) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.UsersUnblock, "", cache.Instance(endpoint.CategoryUsers, userID),
		endpoint.Params{"userId": userID})
}

// RegisterUser creates an account.
func (c *Client) RegisterUser(ctx context.Context, u NewUser) (RegisterResult, error) {
	if err := u.Validate(); err != nil {
		return RegisterResult{}, err
	}
	return mutate[RegisterResult](ctx, c, endpoint.UsersRegister, "", cache.Tag{}, endpoint.Params{"body": u})
}

// UpdateUser changes profile fields of an account.
func (c *Client) UpdateUser(ctx context.Context, userID string, u UserUpdate) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.UsersUpdate, "", cache.Instance(endpoint.CategoryUsers, userID),
		endpoint.Params{"userId": userID, "body": u})
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID string) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.UsersDelete, "", cache.Instance(endpoint.CategoryUsers, userID),
		endpoint.Params{"userId": userID})
}

// SetUserActive activates or deactivates an account.
func (c *Client) SetUserActive(ctx context.Context, userID string, active bool) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.UsersStatus, "", cache.Instance(endpoint.CategoryUsers, userID),
		endpoint.Params{"userId": userID, "isActive": active})
}

// CreatePackage creates a package.
func (c *Client) CreatePackage(ctx context.Context, p Package) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.PackagesCreate, "", cache.Tag{}, endpoint.Params{"body": p})
}

// UpdatePackage replaces a package's fields.
func (c *Client) UpdatePackage(ctx context.Context, id string, p Package) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.PackagesUpdate, "", cache.Instance(endpoint.CategoryPackages, id),
		endpoint.Params{"id": id, "body": p})
}

// DeletePackage removes a package.
func (c *Client) DeletePackage(ctx context.Context, id string) (Ack, error) {
	return mutate[Ack](ctx, c, endpoint.PackagesDelete, "", cache.Instance(endpoint.CategoryPackages, id),
		endpoint.Params{"id": id})
}

// GenerateUserAnalytics asks the API to build a user analytics report.
func (c *Client) GenerateUserAnalytics(ctx context.Context, options map[string]any) (AnalyticsReport, error) {
	return mutate[AnalyticsReport](ctx, c, endpoint.AnalyticsUsers, "report", cache.Tag{}, endpoint.Params{"body": orEmpty(options)})
}

// GenerateTicketSummary asks the API to build a ticket summary report.
func (c *Client) GenerateTicketSummary(ctx context.Context, options map[string]any) (AnalyticsReport, error) {
	return mutate[AnalyticsReport](ctx, c, endpoint.AnalyticsTickets, "report", cache.Tag{}, endpoint.Params{"body": orEmpty(options)})
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
