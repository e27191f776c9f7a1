package llm

import (
	"fmt"
	"strings"
)

const fence = "```"

// PromptParams carries the run values interpolated into every prompt.
type PromptParams struct {
	ProjectName     string
	Region          string
	Runtime         string
	StateBucket     string
	LockTable       string
	FunctionMessage string
}

// outputBlock renders the labeled block a reply must use for path.
func outputBlock(path, tag, lang, placeholder string) string {
	return fmt.Sprintf("### %s %s\n%s%s\n%s\n%s\n", path, tag, fence, lang, placeholder, fence)
}

func BackendPrompt(p PromptParams) string {
	return fmt.Sprintf(`You are an expert DevOps engineer.
Generate only the necessary Terraform configuration for the `+"`backend-bootstrap/backend.tf`"+` file.
This file should define **ONLY** the AWS resources (`+"`aws_s3_bucket`, `aws_dynamodb_table`, and `aws_s3_bucket_public_access_block`"+`) needed to create an S3 bucket and DynamoDB table to store the Terraform state and lock it.
**IMPORTANT: DO NOT include a `+"`terraform { backend ... }`"+` block or any `+"`provider`"+` block in this file.** This file's sole purpose is to define resources to be created, not to configure Terraform's own state backend or AWS provider.
Ensure S3 bucket versioning and server-side encryption (AES256) are enabled.
**For public access blocking, create a separate `+"`aws_s3_bucket_public_access_block`"+` resource and explicitly link it to the S3 state bucket.** Make sure to block all public access settings (block_public_acls, block_public_policy, ignore_public_acls, restrict_public_buckets). DO NOT configure public access blocking directly within the `+"`aws_s3_bucket`"+` resource itself.
The DynamoDB table should be named `+"`%s`"+` and have `+"`LockID`"+` as the primary key with PAY_PER_REQUEST billing mode.
The S3 bucket should be named `+"`%s`"+`.
The S3 bucket should also have `+"`force_destroy = true`"+` for easy cleanup in development.
**Include Terraform output blocks for the S3 bucket name (named `+"`terraform_state_bucket_name`"+`) and the DynamoDB table name (named `+"`terraform_lock_table_name`"+`).**
Output must be in this exact format:
%s`, p.LockTable, p.StateBucket,
		outputBlock("backend-bootstrap/backend.tf", "hcl", "hcl", "# Terraform code goes here"))
}

func CoreInfraPrompt(p PromptParams) string {
	return fmt.Sprintf(`You are an expert DevOps engineer.
Generate the initial Terraform configuration for main.tf and variables.tf files.
These files should define:

A new AWS VPC with CIDR block "10.0.0.0/16".

Two public subnets in different availability zones.

An Internet Gateway and route table associations.

A security group for the Lambda function (allowing inbound from ALB).

A security group for the ALB (allowing HTTP inbound from anywhere).

IAM role and policy for the Lambda function with basic execution permissions (CloudWatch logs, ENI management for VPC).

An S3 bucket for storing the Lambda deployment package (e.g., %[1]s-lambda-code-${data.aws_caller_identity.current.account_id}).

The main.tf should also contain the Terraform backend configuration, referencing the S3 bucket %[2]s and DynamoDB table %[3]s created in the previous step.

Variables for aws_region (default: %[4]s), project_name (default: %[1]s), and environment (default: development).

Ensure no Lambda or ALB resources are defined yet, only the networking, security, and IAM components.

Include a data source for aws_caller_identity to get the account ID.

Output must be in this exact format, providing both files:

%[5]s
%[6]s`, p.ProjectName, p.StateBucket, p.LockTable, p.Region,
		outputBlock("main.tf", "hcl", "hcl", "# main.tf code goes here"),
		outputBlock("variables.tf", "hcl", "hcl", "# variables.tf code goes here"))
}

// ComputeUpdatePrompt asks for main.tf revised with the Lambda function and
// ALB, given the current main.tf. The reply may also revise the runtime source.
func ComputeUpdatePrompt(p PromptParams, currentMainTF string) string {
	return fmt.Sprintf(`You are an expert DevOps engineer.
Here is the current content of my main.tf file:

%[1]shcl
%[2]s
%[1]s

Please update this main.tf file to include the AWS Lambda function and the Application Load Balancer (ALB).

For the Lambda function:

Name: %[3]s-nodejs-app

Handler: index.handler

Runtime: %[4]s

Timeout: 30 seconds, Memory: 128 MB

It should run in the VPC, use the IAM role defined previously, and be associated with the Lambda security group.

The code will be uploaded to the S3 bucket '${aws_s3_bucket.lambda_code_bucket.id}' with key 'lambda.zip'.

Include a source_code_hash (even if placeholder, as GitHub Actions will update it).

The function should respond with a JSON body containing the message "%[5]s".

For the ALB:

Name: %[3]s-alb

Type: application load balancer, internet-facing.

Security group should be the one defined previously.

Subnets: the public subnets defined previously.

Create a target group (lambda_tg) of type lambda that targets the Lambda function.

Create an HTTP listener on port 80 that forwards traffic to this target group.

Grant the ALB permission to invoke the Lambda function using aws_lambda_permission.

Add an alb_dns_name output.

Output the complete, updated main.tf file content in the following format:

%[6]s
%[7]s
%[8]s`, fence, strings.TrimRight(currentMainTF, "\n"), p.ProjectName, p.Runtime, p.FunctionMessage,
		outputBlock("main.tf", "hcl", "hcl", "# Updated main.tf code goes here"),
		outputBlock("src/index.js", "javascript", "javascript", "// Node.js Lambda code"),
		outputBlock("src/package.json", "json", "json", "{}"))
}

func WorkflowPrompt(p PromptParams) string {
	return fmt.Sprintf(`You are an expert DevOps engineer.
Generate the GitHub Actions workflow file for .github/workflows/deploy.yml.
This workflow should:

Trigger on push to the main branch.

Use ubuntu-latest as the runner.

Define necessary permissions for OIDC to assume an AWS role (id-token: write, contents: read).

Set up Node.js (v18.x).

Install Node.js dependencies (e.g., npm install in src/).

Package the Node.js application from src/ into a lambda.zip file. The src directory contains index.js. Use zip -r lambda.zip . from inside the src directory.

Set up Terraform using hashicorp/setup-terraform@v2.

Configure AWS credentials using OIDC for an IAM role named arn:aws:iam::${{ secrets.AWS_ACCOUNT_ID }}:role/GitHubActionsRoleForDeployment.

Run terraform init (ensuring it uses the S3 backend and DynamoDB lock table, region %s).

Run terraform plan.

Run terraform apply -auto-approve.

The lambda.zip file should be uploaded to the S3 bucket created by Terraform (you can use aws s3 cp or ensure Terraform's aws_lambda_function resource uploads it from the local path). Ensure the Lambda source_code_hash is updated dynamically during packaging.

Output must be in this exact format:

%s`, p.Region,
		outputBlock(".github/workflows/deploy.yml", "yaml", "yaml", "# GitHub Actions workflow code goes here"))
}
