package sqlinline

const QInsertWorkflowError = `--sql b8e86e37-88a5-4046-9ecd-72268661926c
insert into workflow_errors (session_id, workflow_name, node_name, error_message, error_stack)
values ($1::bigint, $2::text, $3::text, $4::text, $5::text)
returning id, session_id, workflow_name, node_name, error_message, error_stack, created_at;
`

const QListWorkflowErrors = `--sql 87bf270c-9e7d-4c8d-b69f-2f715165a3fb
select id, session_id, workflow_name, node_name, error_message, error_stack, created_at
from workflow_errors
where ($1::text is null or workflow_name = $1::text)
order by created_at desc, id desc
limit $2::int offset $3::int;
`

const QCountWorkflowErrors = `--sql 4561cc9c-f16b-4d5f-bae3-044859358d95
select count(*)::int
from workflow_errors
where ($1::text is null or workflow_name = $1::text);
`
