package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/adapters/ports"
	"github.com/fetanpay/verification-service/internal/adapters/secrets"
	"github.com/fetanpay/verification-service/internal/config"
)

// initSecretManager selects the secret manager backend for merchant API
// keys and webhook secrets.
//
// Environment variables:
//   - SECRETS_BACKEND: "aws", "vault" or "local" (default: local)
//   - AWS_REGION: region for the aws backend
//   - VAULT_ADDR / VAULT_TOKEN / VAULT_MOUNT: vault backend settings
//   - SECRETS_LOCAL_DIR: directory for the local backend
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	switch cfg.Secrets.Backend {
	case "aws":
		return initAWSSecretManager(ctx, cfg, logger)
	case "vault":
		return initVaultSecretManager(ctx, cfg, logger)
	default:
		return initLocalSecretManager(cfg, logger)
	}
}

func initAWSSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	awsConfig := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)

	sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AWS Secrets Manager",
			zap.Error(err),
			zap.String("region", cfg.Secrets.AWSRegion),
		)
	}

	logger.Info("AWS Secrets Manager initialized",
		zap.String("region", cfg.Secrets.AWSRegion),
	)

	return sm
}

func initVaultSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	vaultConfig := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
	vaultConfig.Token = cfg.Secrets.VaultToken
	vaultConfig.MountPath = cfg.Secrets.VaultMount

	sm, err := secrets.NewVaultAdapter(ctx, vaultConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Vault adapter",
			zap.Error(err),
			zap.String("address", cfg.Secrets.VaultAddress),
		)
	}

	logger.Info("Vault secret manager initialized",
		zap.String("address", cfg.Secrets.VaultAddress),
	)

	return sm
}

func initLocalSecretManager(cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	logger.Warn("Using local filesystem secret manager - NOT for production use!",
		zap.String("dir", cfg.Secrets.LocalDir),
	)
	return secrets.NewLocalSecretManager(cfg.Secrets.LocalDir, logger)
}
