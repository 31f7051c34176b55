package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func testClient(publicBase string) *Client {
	s3Client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("http://localhost:9000"),
		UsePathStyle: true,
	})
	return newClient(s3Client, Options{Bucket: "assets", PublicBaseURL: publicBase})
}

func TestPublicObjectURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"https://cdn.example.com", "uploads/a.png", "https://cdn.example.com/uploads/a.png"},
		{"https://cdn.example.com", "uploads/lobby hall.png", "https://cdn.example.com/uploads/lobby%20hall.png"},
	}

	for _, tt := range tests {
		if got := publicObjectURL(tt.base, tt.key); got != tt.want {
			t.Errorf("publicObjectURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestURL_PublicBase(t *testing.T) {
	c := testClient("https://cdn.example.com/")

	got, err := c.URL(context.Background(), "evacsim/uploads/x.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://cdn.example.com/evacsim/uploads/x.png" {
		t.Errorf("unexpected url %q", got)
	}
}

func TestURL_Presigned(t *testing.T) {
	c := testClient("")

	got, err := c.URL(context.Background(), "evacsim/uploads/x.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "http://localhost:9000/assets/evacsim/uploads/x.png?") {
		t.Errorf("unexpected presigned url %q", got)
	}
	if !strings.Contains(got, "X-Amz-Signature=") {
		t.Errorf("presigned url missing signature: %q", got)
	}
}
