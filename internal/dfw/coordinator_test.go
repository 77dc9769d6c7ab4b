package dfw

import (
	"context"
	"testing"

	"github.com/clbanning/mxj/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Read(ctx context.Context, res nsx.Resource, params nsx.Params) (*nsx.Response, error) {
	args := m.Called(ctx, res, params)
	resp, _ := args.Get(0).(*nsx.Response)
	return resp, args.Error(1)
}

func (m *mockSession) Create(ctx context.Context, res nsx.Resource, params nsx.Params, body []byte, tag string) (*nsx.Response, error) {
	args := m.Called(ctx, res, params, body, tag)
	resp, _ := args.Get(0).(*nsx.Response)
	return resp, args.Error(1)
}

func (m *mockSession) Update(ctx context.Context, res nsx.Resource, params nsx.Params, body []byte, tag string) (*nsx.Response, error) {
	args := m.Called(ctx, res, params, body, tag)
	resp, _ := args.Get(0).(*nsx.Response)
	return resp, args.Error(1)
}

func (m *mockSession) Delete(ctx context.Context, res nsx.Resource, params nsx.Params, tag string) error {
	args := m.Called(ctx, res, params, tag)
	return args.Error(0)
}

func configResponse(t *testing.T) *nsx.Response {
	t.Helper()
	body, err := mxj.NewMapXml([]byte(configXML))
	require.NoError(t, err)
	return &nsx.Response{Status: 200, Body: body}
}

func TestDeleteRule_DefaultIssuesNoDelete(t *testing.T) {
	s := new(mockSession)
	s.On("Read", mock.Anything, nsx.FirewallConfig, mock.Anything).Return(configResponse(t), nil)

	_, err := NewCoordinator(s, nil).DeleteRule(context.Background(), "1001")
	assert.ErrorIs(t, err, ErrProtectedObject)

	s.AssertExpectations(t)
	s.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteSection_DefaultIssuesNoDelete(t *testing.T) {
	s := new(mockSession)
	s.On("Read", mock.Anything, nsx.FirewallConfig, mock.Anything).Return(configResponse(t), nil)

	for _, id := range []string{"1001", "1003"} {
		_, err := NewCoordinator(s, nil).DeleteSection(context.Background(), id)
		assert.ErrorIs(t, err, ErrProtectedObject, id)
	}

	s.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteClause_DefaultRuleIsProtected(t *testing.T) {
	s := new(mockSession)
	s.On("Read", mock.Anything, nsx.FirewallConfig, mock.Anything).Return(configResponse(t), nil)

	_, err := NewCoordinator(s, nil).DeleteClause(context.Background(), "1001", ClauseService, "HTTP")
	assert.ErrorIs(t, err, ErrProtectedObject)
	s.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpstreamErrorsAreClassified(t *testing.T) {
	s := new(mockSession)
	s.On("Read", mock.Anything, nsx.FirewallConfig, mock.Anything).
		Return(nil, &nsx.StatusError{Method: "GET", Path: "/config", Code: 500})

	_, err := NewCoordinator(s, nil).DeleteRule(context.Background(), "1013")
	assert.ErrorIs(t, err, ErrUpstream)

	var se *nsx.StatusError
	assert.ErrorAs(t, err, &se)
}

func webManager() *fakeManager {
	m := newFakeManager().withDefaults()
	m.addSection(Section{ID: "1010", Name: "web", Type: LayerThree, Rules: []Rule{{
		ID:         "1013",
		Name:       "web-in",
		Action:     ActionAllow,
		Direction:  DirectionInOut,
		PacketType: PacketAny,
		Services: []Service{
			{Name: "HTTP", Value: "application-253", Type: TypeApplication},
			{ProtocolName: "TCP", SourcePort: "any", DestinationPort: "8080"},
		},
		AppliedTo: []ApplyTarget{{Type: TypeEdge, Value: "edge-1", Name: "edge-a"}},
	}, {
		ID:         "1014",
		Name:       "web-out",
		Action:     ActionDeny,
		Direction:  DirectionOut,
		PacketType: PacketAny,
		AppliedTo:  defaultRule().AppliedTo,
	}}})
	return m
}

func TestDeleteClause_ServiceByNameOrTriple(t *testing.T) {
	m := webManager()
	c := NewCoordinator(m, nil)
	ctx := context.Background()

	res, err := c.DeleteClause(ctx, "1013", ClauseService, "TCP:any:8080")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	require.Len(t, res.Rule.Services, 1)
	assert.Equal(t, "HTTP", res.Rule.Services[0].Name)

	res, err = c.DeleteClause(ctx, "1013", ClauseService, "HTTP")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Nil(t, res.Rule.Services)
	assert.Equal(t, "any", res.Rule.Row()[4])
}

func TestDeleteClause_NoMatchSkipsWrite(t *testing.T) {
	m := webManager()

	res, err := NewCoordinator(m, nil).DeleteClause(context.Background(), "1013", ClauseSource, "10.9.9.9")
	require.NoError(t, err)
	assert.Zero(t, res.Removed)
	assert.Empty(t, m.writes)
}

func TestDeleteClause_SoleApplyTarget(t *testing.T) {
	m := webManager()

	_, err := NewCoordinator(m, nil).DeleteClause(context.Background(), "1013", ClauseApplyTo, "edge-a")
	assert.ErrorIs(t, err, ErrProtectedObject)
	assert.Empty(t, m.writes)
	assert.Len(t, m.section("1010").Rules[0].AppliedTo, 1)
}

// staleSession bumps the section version between the coordinator's read and
// its write, like a concurrent client would.
type staleSession struct {
	*fakeManager
	sectionID string
	bumped    bool
}

func (s *staleSession) Read(ctx context.Context, res nsx.Resource, params nsx.Params) (*nsx.Response, error) {
	resp, err := s.fakeManager.Read(ctx, res, params)
	if err == nil && res != nsx.FirewallConfig && !s.bumped {
		s.bumped = true
		s.fakeManager.bump(s.sectionID)
	}
	return resp, err
}

func TestDeleteClause_StaleTag(t *testing.T) {
	m := webManager()
	s := &staleSession{fakeManager: m, sectionID: "1010"}

	_, err := NewCoordinator(s, nil).DeleteClause(context.Background(), "1013", ClauseService, "HTTP")
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Len(t, m.section("1010").Rules[0].Services, 2)

	res, err := NewCoordinator(m, nil).DeleteClause(context.Background(), "1013", ClauseService, "HTTP")
	require.NoError(t, err)
	assert.Len(t, res.Rule.Services, 1)
}

func TestDeleteRule_StaleTag(t *testing.T) {
	m := webManager()
	s := &staleSession{fakeManager: m, sectionID: "1010"}

	_, err := NewCoordinator(s, nil).DeleteRule(context.Background(), "1014")
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Len(t, m.section("1010").Rules, 2)
}

func TestDeleteRule(t *testing.T) {
	m := webManager()

	r, err := NewCoordinator(m, nil).DeleteRule(context.Background(), "1014")
	require.NoError(t, err)
	assert.Equal(t, "web-out", r.Name)
	require.Len(t, m.section("1010").Rules, 1)
	assert.Equal(t, "1013", m.section("1010").Rules[0].ID)

	_, err = NewCoordinator(m, nil).DeleteRule(context.Background(), "1014")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSection(t *testing.T) {
	m := newFakeManager().withDefaults()
	c := NewCoordinator(m, nil)
	ctx := context.Background()

	res, err := c.CreateSection(ctx, "app", LayerThree)
	require.NoError(t, err)
	assert.False(t, res.Existed)
	assert.Equal(t, "app", res.Section.Name)
	assert.Equal(t, LayerThree, res.Section.Type)
	assert.NotEmpty(t, res.Section.ID)

	again, err := c.CreateSection(ctx, "app", LayerThree)
	require.NoError(t, err)
	assert.True(t, again.Existed)
	assert.Equal(t, res.Section.ID, again.Section.ID)
	assert.Len(t, m.writes, 1)

	other, err := c.CreateSection(ctx, "app", LayerTwo)
	require.NoError(t, err)
	assert.False(t, other.Existed)

	groups, err := c.Index().ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app", groups[1].Sections[0].Name, "new sections go on top")

	_, err = c.CreateSection(ctx, "", LayerThree)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeleteSection(t *testing.T) {
	m := webManager()

	sec, err := NewCoordinator(m, nil).DeleteSection(context.Background(), "1010")
	require.NoError(t, err)
	assert.Equal(t, "web", sec.Name)
	assert.Empty(t, m.section("1010").ID)
}

func TestCreateRule(t *testing.T) {
	m := webManager()
	m.services = []CatalogEntry{{ID: "application-253", Name: "HTTP"}}
	c := NewCoordinator(m, nil)
	ctx := context.Background()

	r, err := c.CreateRule(ctx, RuleSpec{
		SectionName: "web",
		Name:        "ssh",
		Action:      "block",
		Source:      EndpointSpec{Value: "10.0.0.0/8"},
		Service:     ServiceSpec{ProtocolName: "tcp", DestinationPort: "22"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "1010", r.SectionID)
	assert.Equal(t, ActionDeny, r.Action)

	sec := m.section("1010")
	require.Len(t, sec.Rules, 3)
	assert.Equal(t, r.ID, sec.Rules[0].ID, "new rules go on top")
	assert.Equal(t, "TCP", sec.Rules[0].Services[0].ProtocolName)
	assert.Equal(t, "10.0.0.0/8", sec.Rules[0].Sources.Entries[0].Value)
	assert.True(t, sec.Rules[0].AppliedTo[0].IsDistributedFirewall())

	r, err = c.CreateRule(ctx, RuleSpec{SectionID: "1010", Name: "http", Service: ServiceSpec{Name: "HTTP"}})
	require.NoError(t, err)
	assert.Equal(t, []Service{{Name: "HTTP", Value: "application-253", Type: TypeApplication}}, r.Services)
}

func TestCreateRule_Rejections(t *testing.T) {
	m := webManager()
	c := NewCoordinator(m, nil)
	ctx := context.Background()

	_, err := c.CreateRule(ctx, RuleSpec{SectionID: "1001", Name: "l2"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.CreateRule(ctx, RuleSpec{SectionName: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.CreateRule(ctx, RuleSpec{SectionID: "1010", Name: "x", Action: "drop"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.CreateRule(ctx, RuleSpec{SectionID: "1010", Name: "x", Source: EndpointSpec{Value: "10.0.0.300"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.CreateRule(ctx, RuleSpec{SectionID: "1010", Name: "x", Service: ServiceSpec{Name: "NOPE"}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.CreateRule(ctx, RuleSpec{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, m.writes)
}

func TestMoveRuleAbove(t *testing.T) {
	m := webManager()
	c := NewCoordinator(m, nil)
	ctx := context.Background()

	sec, err := c.MoveRuleAbove(ctx, "1014", "1013")
	require.NoError(t, err)
	require.Len(t, sec.Rules, 2)
	assert.Equal(t, "1014", sec.Rules[0].ID)
	assert.Equal(t, "1013", sec.Rules[1].ID)
	assert.Equal(t, "2", sec.VersionTag)

	_, err = c.MoveRuleAbove(ctx, "1013", "1001")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.MoveRuleAbove(ctx, "1013", "4242")
	assert.ErrorIs(t, err, ErrNotFound)
}
