package bootstrap

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/kunwarpradip/distributedchord-dht/internal/config"
)

// Route53Bootstrap discovers and advertises peers via a single TXT
// record in a Route53 hosted zone: its value is a comma-separated list
// of "host:port" addresses, one per known node. This trades a real
// membership service for something an operator can inspect with `dig`.
type Route53Bootstrap struct {
	client       *route53.Client
	hostedZoneID string
	recordName   string
}

// NewRoute53Bootstrap builds a Bootstrap backed by Route53 using the
// process's default AWS credential chain.
func NewRoute53Bootstrap(ctx context.Context, cfg config.Route53BootstrapConfig) (*Route53Bootstrap, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: loading aws config: %w", err)
	}
	return &Route53Bootstrap{
		client:       route53.NewFromConfig(awsCfg),
		hostedZoneID: cfg.HostedZoneID,
		recordName:   cfg.RecordName,
	}, nil
}

func (r *Route53Bootstrap) currentPeers(ctx context.Context) ([]string, error) {
	out, err := r.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    &r.hostedZoneID,
		StartRecordName: &r.recordName,
		StartRecordType: types.RRTypeTxt,
		MaxItems:        awsInt32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: listing record sets: %w", err)
	}
	for _, rrset := range out.ResourceRecordSets {
		if rrset.Name == nil || *rrset.Name != dotSuffixed(r.recordName) {
			continue
		}
		if len(rrset.ResourceRecords) == 0 || rrset.ResourceRecords[0].Value == nil {
			continue
		}
		return splitPeerList(*rrset.ResourceRecords[0].Value), nil
	}
	return nil, nil
}

func (r *Route53Bootstrap) upsert(ctx context.Context, peers []string) error {
	value := fmt.Sprintf("%q", strings.Join(peers, ","))
	_, err := r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: &r.hostedZoneID,
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{
				{
					Action: types.ChangeActionUpsert,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: &r.recordName,
						Type: types.RRTypeTxt,
						TTL:  awsInt64(30),
						ResourceRecords: []types.ResourceRecord{
							{Value: &value},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("bootstrap: upserting record: %w", err)
	}
	return nil
}

// Discover returns the peer list currently advertised in the TXT
// record.
func (r *Route53Bootstrap) Discover(ctx context.Context) ([]string, error) {
	return r.currentPeers(ctx)
}

// Register appends selfAddr to the advertised peer list, if absent.
func (r *Route53Bootstrap) Register(ctx context.Context, selfAddr string) error {
	peers, err := r.currentPeers(ctx)
	if err != nil {
		return err
	}
	for _, p := range peers {
		if p == selfAddr {
			return nil
		}
	}
	return r.upsert(ctx, append(peers, selfAddr))
}

// Deregister removes selfAddr from the advertised peer list.
func (r *Route53Bootstrap) Deregister(ctx context.Context, selfAddr string) error {
	peers, err := r.currentPeers(ctx)
	if err != nil {
		return err
	}
	remaining := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != selfAddr {
			remaining = append(remaining, p)
		}
	}
	return r.upsert(ctx, remaining)
}

func splitPeerList(quoted string) []string {
	unquoted := strings.Trim(quoted, `"`)
	if unquoted == "" {
		return nil
	}
	return strings.Split(unquoted, ",")
}

func dotSuffixed(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

func awsInt32(v int32) *int32 { return &v }
func awsInt64(v int64) *int64 { return &v }
